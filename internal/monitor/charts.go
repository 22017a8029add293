package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lineage.report/internal/run"
	"github.com/banshee-data/lineage.report/internal/stats"
)

// result fetches the last published result, writing a 404 when no
// analysis has completed yet.
func (m *Monitor) result(w http.ResponseWriter) *run.Result {
	res := m.lastResult()
	if res == nil || res.Census == nil {
		m.writeJSONError(w, http.StatusNotFound, "no analysis results yet")
		return nil
	}
	return res
}

type renderer interface {
	Render(w io.Writer) error
}

func (m *Monitor) renderChart(w http.ResponseWriter, c renderer) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleDashboard renders every chart on one page.
func (m *Monitor) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res := m.result(w)
	if res == nil {
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(cellCountLine(res), lengthBar(res), newTracksBar(res))

	m.renderChart(w, page)
}

func (m *Monitor) handleCellCountChart(w http.ResponseWriter, r *http.Request) {
	res := m.result(w)
	if res == nil {
		return
	}
	m.renderChart(w, cellCountLine(res))
}

func (m *Monitor) handleLengthChart(w http.ResponseWriter, r *http.Request) {
	res := m.result(w)
	if res == nil {
		return
	}
	m.renderChart(w, lengthBar(res))
}

func (m *Monitor) handleNewTracksChart(w http.ResponseWriter, r *http.Request) {
	res := m.result(w)
	if res == nil {
		return
	}
	m.renderChart(w, newTracksBar(res))
}

func chartSubtitle(res *run.Result) string {
	return fmt.Sprintf("dataset=%s tracks=%d frames=%d",
		filepath.Base(res.Dataset), res.Summary.TotalTracks, res.Stats.FrameCount)
}

// cellCountLine plots the number of distinct cells per frame.
func cellCountLine(res *run.Result) *charts.Line {
	c := res.Census
	x := make([]string, c.Frames())
	y := make([]opts.LineData, c.Frames())
	for t := 0; t < c.Frames(); t++ {
		x[t] = strconv.Itoa(t)
		y[t] = opts.LineData{Value: c.Count(t)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cell Count", Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Cell Count by Frame", Subtitle: chartSubtitle(res)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cells"}),
	)
	line.SetXAxis(x).AddSeries("cells", y)
	return line
}

// lengthBar plots a histogram of observed track lengths.
func lengthBar(res *run.Result) *charts.Bar {
	hist := make(map[int]int)
	for _, n := range stats.ObservedLengths(res.Census) {
		hist[n]++
	}

	lengths := make([]int, 0, len(hist))
	for n := range hist {
		lengths = append(lengths, n)
	}
	sort.Ints(lengths)

	x := make([]string, len(lengths))
	y := make([]opts.BarData, len(lengths))
	for i, n := range lengths {
		x[i] = strconv.Itoa(n)
		y[i] = opts.BarData{Value: hist[n]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Track Length Distribution", Subtitle: chartSubtitle(res)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Observed frames"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Tracks"}),
	)
	bar.SetXAxis(x).
		AddSeries("tracks", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// newTracksBar plots how many ids appear per frame that were absent
// from the previous one. Spikes outside known division frames suggest
// fragmented tracking.
func newTracksBar(res *run.Result) *charts.Bar {
	c := res.Census
	n := c.Frames()

	x := make([]string, 0, n)
	y := make([]opts.BarData, 0, n)
	if n > 1 {
		prev := c.PresentIDs(0)
		for t := 1; t < n; t++ {
			cur := c.PresentIDs(t)
			x = append(x, strconv.Itoa(t))
			y = append(y, opts.BarData{Value: stats.NewTracks(prev, cur)})
			prev = cur
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "New Tracks per Frame", Subtitle: chartSubtitle(res)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "New tracks"}),
	)
	bar.SetXAxis(x).
		AddSeries("new tracks", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
