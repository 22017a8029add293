// Package census scans a label mask stack into per-frame summaries:
// the set of present track ids, their pixel counts, and their
// centroids.
package census

import (
	"fmt"
	"sort"

	"github.com/alitto/pond/v2"

	"github.com/banshee-data/lineage.report/internal/ctc"
	"github.com/banshee-data/lineage.report/internal/maskio"
)

// NotObservedError reports a (frame, track) pair with no pixels. An
// expected condition: callers skip the pair rather than abort.
type NotObservedError struct {
	Frame int
	ID    ctc.TrackID
}

func (e *NotObservedError) Error() string {
	return fmt.Sprintf("track %d not observed in frame %d", e.ID, e.Frame)
}

// Centroid is the mean pixel position of one label in one frame, in
// (row, column) order.
type Centroid struct {
	Y float64
	X float64
}

type tally struct {
	pixels int
	sumY   int64
	sumX   int64
}

type frameCensus struct {
	tallies map[ctc.TrackID]*tally
	ids     []ctc.TrackID // ascending
}

// Census holds the per-frame summaries for one mask stack.
type Census struct {
	frames    []frameCensus
	maxWidth  int
	maxHeight int
}

// Build scans every frame of the stack. Frames are independent, so
// with workers > 1 the scan fans out over a worker pool; the result
// is identical to a sequential scan.
func Build(frames []maskio.Frame, workers int) *Census {
	c := &Census{frames: make([]frameCensus, len(frames))}
	for i := range frames {
		if frames[i].Width > c.maxWidth {
			c.maxWidth = frames[i].Width
		}
		if frames[i].Height > c.maxHeight {
			c.maxHeight = frames[i].Height
		}
	}

	if workers <= 1 || len(frames) < 2 {
		for i := range frames {
			c.frames[i] = scanFrame(&frames[i])
		}
		return c
	}

	pool := pond.NewPool(workers)
	for i := range frames {
		pool.Submit(func() {
			c.frames[i] = scanFrame(&frames[i])
		})
	}
	pool.StopAndWait()
	return c
}

// scanFrame tallies each nonzero label's pixels. Pixels sharing a
// value contribute to one tally whether or not they are contiguous.
func scanFrame(f *maskio.Frame) frameCensus {
	fc := frameCensus{tallies: make(map[ctc.TrackID]*tally)}

	labels := f.Labels()
	for y := 0; y < f.Height; y++ {
		row := labels[y*f.Width : (y+1)*f.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			id := ctc.TrackID(v)
			tl := fc.tallies[id]
			if tl == nil {
				tl = &tally{}
				fc.tallies[id] = tl
			}
			tl.pixels++
			tl.sumY += int64(y)
			tl.sumX += int64(x)
		}
	}

	fc.ids = make([]ctc.TrackID, 0, len(fc.tallies))
	for id := range fc.tallies {
		fc.ids = append(fc.ids, id)
	}
	sort.Slice(fc.ids, func(i, j int) bool { return fc.ids[i] < fc.ids[j] })
	return fc
}

// Frames returns the number of frames scanned.
func (c *Census) Frames() int { return len(c.frames) }

// Width returns the widest frame dimension seen across the stack.
func (c *Census) Width() int { return c.maxWidth }

// Height returns the tallest frame dimension seen across the stack.
func (c *Census) Height() int { return c.maxHeight }

// PresentIDs returns the distinct nonzero labels in frame t,
// ascending.
func (c *Census) PresentIDs(t int) []ctc.TrackID {
	ids := c.frames[t].ids
	out := make([]ctc.TrackID, len(ids))
	copy(out, ids)
	return out
}

// Count returns the number of distinct nonzero labels in frame t.
func (c *Census) Count(t int) int { return len(c.frames[t].ids) }

// Observed reports whether id has at least one pixel in frame t.
func (c *Census) Observed(t int, id ctc.TrackID) bool {
	_, ok := c.frames[t].tallies[id]
	return ok
}

// PixelCount returns the number of pixels carrying id in frame t, 0
// if unobserved.
func (c *Census) PixelCount(t int, id ctc.TrackID) int {
	tl, ok := c.frames[t].tallies[id]
	if !ok {
		return 0
	}
	return tl.pixels
}

// Centroid returns the mean (row, column) of id's pixels in frame t.
// Absent labels yield a NotObservedError.
func (c *Census) Centroid(t int, id ctc.TrackID) (Centroid, error) {
	tl, ok := c.frames[t].tallies[id]
	if !ok {
		return Centroid{}, &NotObservedError{Frame: t, ID: id}
	}
	n := float64(tl.pixels)
	return Centroid{Y: float64(tl.sumY) / n, X: float64(tl.sumX) / n}, nil
}

// AllIDs returns every label observed anywhere in the stack,
// ascending.
func (c *Census) AllIDs() []ctc.TrackID {
	seen := make(map[ctc.TrackID]struct{})
	for i := range c.frames {
		for _, id := range c.frames[i].ids {
			seen[id] = struct{}{}
		}
	}
	ids := make([]ctc.TrackID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
