package monitor

import (
	"fmt"
	"net/http"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lineage.report/internal/run"
)

// occupancyGrid counts centroid visits per pixel. It satisfies
// plotter.GridXYZ; row 0 of the plot is the bottom, so Z flips the
// mask's top-down row order.
type occupancyGrid struct {
	w, h   int
	counts []float64
}

func (g *occupancyGrid) Dims() (c, r int)   { return g.w, g.h }
func (g *occupancyGrid) X(c int) float64    { return float64(c) }
func (g *occupancyGrid) Y(r int) float64    { return float64(r) }
func (g *occupancyGrid) Z(c, r int) float64 { return g.counts[(g.h-1-r)*g.w+c] }

// newOccupancyGrid bins trajectory centroids into a visit-count grid
// matching the mask dimensions.
func newOccupancyGrid(res *run.Result) *occupancyGrid {
	w, h := res.Census.Width(), res.Census.Height()
	if w < 1 || h < 1 {
		return nil
	}
	g := &occupancyGrid{w: w, h: h, counts: make([]float64, w*h)}
	for _, p := range res.Points {
		x, y := int(p.X+0.5), int(p.Y+0.5)
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		g.counts[y*w+x]++
	}
	return g
}

// handleOccupancyPNG serves a heatmap of where centroids spent time.
func (m *Monitor) handleOccupancyPNG(w http.ResponseWriter, r *http.Request) {
	res := m.result(w)
	if res == nil {
		return
	}
	grid := newOccupancyGrid(res)
	if grid == nil || len(res.Points) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no trajectory points to plot")
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Centroid Occupancy - %s", filepath.Base(res.Dataset))
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.Add(plotter.NewHeatMap(grid, palette.Heat(12, 1)))

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render heatmap: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// Streaming already started; nothing useful left to send.
		return
	}
}
