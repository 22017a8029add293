// Package trajectory fuses a lineage table with a frame census into
// the ordered per-track point sets consumed by visualization layers.
package trajectory

import (
	"github.com/banshee-data/lineage.report/internal/census"
	"github.com/banshee-data/lineage.report/internal/ctc"
)

// Point is one observed trajectory sample. Y and X are the centroid
// row and column in pixels.
type Point struct {
	TrackID ctc.TrackID `json:"track_id"`
	Frame   int         `json:"frame"`
	Y       float64     `json:"y"`
	X       float64     `json:"x"`
}

// Summary aggregates one fused trajectory set.
type Summary struct {
	TotalTracks int `json:"total_tracks"`
	Divisions   int `json:"divisions"`
	TotalPoints int `json:"total_points"`
}

// Fuse emits one point per (track, frame) pair where the track is
// both declared active and observed in that frame's mask. Declared
// but unobserved frames are skipped silently, truncating the
// trajectory; there is no interpolation across gaps. Points are
// ordered by (track id, frame), both ascending.
//
// Divisions counts tracks with a nonzero parent id, resolvable or
// not.
func Fuse(table *ctc.Table, c *census.Census) ([]Point, Summary) {
	points := []Point{}
	divisions := 0

	for _, id := range table.IDs() {
		tr, _ := table.Lookup(id)
		if !tr.IsRoot() {
			divisions++
		}
		for t := tr.Start; t <= tr.End && t < c.Frames(); t++ {
			ctr, err := c.Centroid(t, id)
			if err != nil {
				continue // not observed in this frame
			}
			points = append(points, Point{TrackID: id, Frame: t, Y: ctr.Y, X: ctr.X})
		}
	}

	return points, Summary{
		TotalTracks: table.Len(),
		Divisions:   divisions,
		TotalPoints: len(points),
	}
}
