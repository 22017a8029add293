// Package monitor serves debugging charts over the most recent
// analysis result: per-frame cell counts, the track length
// distribution, fragmentation, and a positional occupancy heatmap.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/banshee-data/lineage.report/internal/run"
)

// echartsAssetsPrefix points chart pages at the public asset bundle.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Monitor holds the latest analysis result for chart rendering. A
// watch worker or serve loop publishes results with SetResult.
type Monitor struct {
	mu   sync.Mutex
	last *run.Result
}

func New() *Monitor {
	return &Monitor{}
}

// SetResult publishes the result the chart handlers render.
func (m *Monitor) SetResult(res *run.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = res
}

func (m *Monitor) lastResult() *run.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Attach registers the chart routes on mux.
func (m *Monitor) Attach(mux *http.ServeMux) {
	mux.HandleFunc("/monitor", m.handleDashboard)
	mux.HandleFunc("/monitor/cellcount", m.handleCellCountChart)
	mux.HandleFunc("/monitor/lengths", m.handleLengthChart)
	mux.HandleFunc("/monitor/newtracks", m.handleNewTracksChart)
	mux.HandleFunc("/monitor/occupancy.png", m.handleOccupancyPNG)
}

func (m *Monitor) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
