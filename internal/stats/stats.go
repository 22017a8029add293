// Package stats computes longitudinal tracking statistics from a
// frame census: track length distribution, fragmentation signal, and
// population consistency.
package stats

import (
	"encoding/json"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lineage.report/internal/census"
	"github.com/banshee-data/lineage.report/internal/ctc"
)

// DefaultShortTrackFrames is the observed length below which a track
// is flagged as a likely fragmentation artifact.
const DefaultShortTrackFrames = 3

// TrackingStats holds the aggregate statistics for one analysis run.
type TrackingStats struct {
	// Basic counts
	FrameCount int `json:"frame_count"`
	TrackCount int `json:"track_count"`

	// Track length distribution, in observed frames
	MeanTrackLength   float64 `json:"mean_track_length_frames"`
	MedianTrackLength float64 `json:"median_track_length_frames"`
	MinTrackLength    int     `json:"min_track_length_frames"`
	MaxTrackLength    int     `json:"max_track_length_frames"`
	ShortTracks       int     `json:"short_tracks"`
	ShortTrackFrames  int     `json:"short_track_frames"`

	// Fragmentation signal
	AvgNewTracksPerFrame float64 `json:"avg_new_tracks_per_frame"`

	// Population consistency
	MinCellCount    int     `json:"min_cell_count"`
	MaxCellCount    int     `json:"max_cell_count"`
	CellCountStdDev float64 `json:"cell_count_std_dev"`
}

// Compute derives every statistic from the census. shortFrames is the
// short-track threshold; values below 1 fall back to
// DefaultShortTrackFrames.
//
// Track lengths count observed frames only, never the declared
// lifespan, so a track declared over ten frames but observed in three
// reports length 3. The divergence is a signal worth surfacing, not a
// defect to normalize away.
func Compute(c *census.Census, shortFrames int) *TrackingStats {
	if shortFrames < 1 {
		shortFrames = DefaultShortTrackFrames
	}
	s := &TrackingStats{
		FrameCount:       c.Frames(),
		ShortTrackFrames: shortFrames,
	}

	lengths := ObservedLengths(c)
	s.TrackCount = len(lengths)

	if s.TrackCount > 0 {
		vals := make([]float64, 0, len(lengths))
		for _, n := range lengths {
			vals = append(vals, float64(n))
			if n < shortFrames {
				s.ShortTracks++
			}
		}
		sort.Float64s(vals)

		s.MeanTrackLength = stat.Mean(vals, nil)
		s.MedianTrackLength = Median(vals)
		s.MinTrackLength = int(vals[0])
		s.MaxTrackLength = int(vals[len(vals)-1])
	}

	// Frame 0 has no predecessor, so the fragmentation mean runs
	// over frames 1..N-1.
	if n := c.Frames(); n > 1 {
		newCounts := make([]float64, 0, n-1)
		prev := c.PresentIDs(0)
		for t := 1; t < n; t++ {
			cur := c.PresentIDs(t)
			newCounts = append(newCounts, float64(NewTracks(prev, cur)))
			prev = cur
		}
		s.AvgNewTracksPerFrame = stat.Mean(newCounts, nil)
	}

	if n := c.Frames(); n > 0 {
		counts := make([]float64, n)
		minC, maxC := c.Count(0), c.Count(0)
		for t := 0; t < n; t++ {
			ct := c.Count(t)
			counts[t] = float64(ct)
			if ct < minC {
				minC = ct
			}
			if ct > maxC {
				maxC = ct
			}
		}
		s.MinCellCount = minC
		s.MaxCellCount = maxC
		s.CellCountStdDev = stat.PopStdDev(counts, nil)
	}

	return s
}

// ObservedLengths returns, per track id observed anywhere in the
// stack, the number of frames it appears in. Ids declared in a
// lineage table but never observed have no entry.
func ObservedLengths(c *census.Census) map[ctc.TrackID]int {
	lengths := make(map[ctc.TrackID]int)
	for t := 0; t < c.Frames(); t++ {
		for _, id := range c.PresentIDs(t) {
			lengths[id]++
		}
	}
	return lengths
}

// NewTracks counts ids present in cur but absent from prev. Both
// slices must be sorted ascending.
func NewTracks(prev, cur []ctc.TrackID) int {
	n, i := 0, 0
	for _, id := range cur {
		for i < len(prev) && prev[i] < id {
			i++
		}
		if i >= len(prev) || prev[i] != id {
			n++
		}
	}
	return n
}

// Median returns the median of sorted values, averaging the two
// middle values when the count is even. Empty input yields 0.
func Median(sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 1:
		return sorted[n/2]
	default:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
}

// ToJSON serializes the statistics for database storage.
func (s *TrackingStats) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseTrackingStats deserializes statistics from JSON.
func ParseTrackingStats(jsonStr string) (*TrackingStats, error) {
	var s TrackingStats
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
