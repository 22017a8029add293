package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/lineage.report/internal/db"
	"github.com/banshee-data/lineage.report/internal/run"
	"github.com/banshee-data/lineage.report/internal/security"
	"github.com/banshee-data/lineage.report/internal/stats"
	"github.com/banshee-data/lineage.report/internal/trajectory"
	"github.com/banshee-data/lineage.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db       *db.DB
	analyzer *run.Analyzer
	dataRoot string
	cal      units.Calibration
	units    string
}

// NewServer wires the HTTP API over a run store. The analyzer may be
// nil, which disables POST /api/analyze. exportUnits is the default
// length unit for trajectory downloads.
func NewServer(database *db.DB, analyzer *run.Analyzer, dataRoot string, cal units.Calibration, exportUnits string) *Server {
	if exportUnits == "" {
		exportUnits = units.Pixels
	}
	return &Server{
		db:       database,
		analyzer: analyzer,
		dataRoot: dataRoot,
		cal:      cal,
		units:    exportUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.handleRun)
	mux.HandleFunc("/api/runs/{id}/report", s.showRunReport)
	mux.HandleFunc("/api/runs/{id}/trajectory", s.exportTrajectory)
	mux.HandleFunc("/api/analyze", s.analyzeDataset)
	mux.HandleFunc("/api/stats/latest", s.showLatestStats)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 0 // store default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsedLimit, err := strconv.Atoi(l)
		if err != nil || parsedLimit < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsedLimit
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}

	// The list view drops the heavyweight blobs; the run detail
	// endpoint returns them.
	for i := range runs {
		runs[i].StatsJSON = ""
		runs[i].Report = ""
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// RunDetail is the response shape of GET /api/runs/{id}.
type RunDetail struct {
	db.AnalysisRun
	Warnings []db.RunWarning `json:"warnings"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.showRun(w, r)
	case http.MethodDelete:
		s.deleteRun(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	row, err := s.db.GetRun(r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	warnings, err := s.db.WarningsForRun(row.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve warnings: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(RunDetail{AnalysisRun: *row, Warnings: warnings}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.db.DeleteRun(id)
	if errors.Is(err, db.ErrRunNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to delete run: %v", err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "run_id": id})
}

func (s *Server) showRunReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	row, err := s.db.GetRun(r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve run: %v", err), http.StatusInternalServerError)
		return
	}
	if row.Report == "" {
		http.Error(w, "No report recorded for this run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, row.Report)
}

func (s *Server) exportTrajectory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'format' parameter: must be csv or json")
		return
	}

	exportUnits := r.URL.Query().Get("units")
	if exportUnits == "" {
		exportUnits = s.units
	}
	if !units.IsValidLengthUnit(exportUnits) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid 'units' parameter: must be one of %s", units.LengthUnitsString()))
		return
	}

	row, err := s.db.GetRun(r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	points, err := s.db.TrajectoryForRun(row.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve trajectory: %v", err))
		return
	}

	// Centroids are stored in pixels; convert on the way out.
	if exportUnits != units.Pixels {
		points = trajectory.Calibrate(points, s.cal, exportUnits)
	}

	filename := fmt.Sprintf("trajectory-%s.%s",
		security.SanitizeFilename(filepath.Base(row.Dataset)), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := trajectory.WriteCSV(w, points); err != nil {
			log.Printf("Failed to write trajectory CSV for run %s: %v", row.ID, err)
		}
		return
	}

	summary := trajectory.Summary{
		TotalTracks: row.TrackCount,
		Divisions:   row.DivisionCount,
		TotalPoints: row.PointCount,
	}
	if err := trajectory.WriteJSON(w, summary, points); err != nil {
		log.Printf("Failed to write trajectory JSON for run %s: %v", row.ID, err)
	}
}

// AnalyzeResponse summarizes a run triggered through the API.
type AnalyzeResponse struct {
	RunID          string  `json:"run_id"`
	Dataset        string  `json:"dataset"`
	TotalTracks    int     `json:"total_tracks"`
	Divisions      int     `json:"divisions"`
	DivisionEvents int     `json:"division_events"`
	TotalPoints    int     `json:"total_points"`
	WarningCount   int     `json:"warning_count"`
	DurationMs     float64 `json:"duration_ms"`
}

func (s *Server) analyzeDataset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.analyzer == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Analysis is not enabled on this server")
		return
	}

	dataset := r.FormValue("dataset")
	if dataset == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'dataset' parameter")
		return
	}

	dir, err := security.ValidateDatasetDir(dataset, s.dataRoot)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid dataset: %v", err))
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), dir)
	if err != nil {
		s.writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	resp := AnalyzeResponse{
		RunID:          res.RunID,
		Dataset:        res.Dataset,
		TotalTracks:    res.Summary.TotalTracks,
		Divisions:      res.Summary.Divisions,
		DivisionEvents: res.DivisionEvents,
		TotalPoints:    res.Summary.TotalPoints,
		WarningCount:   len(res.Warnings),
		DurationMs:     float64(res.Duration.Nanoseconds()) / 1e6,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write analysis result")
		return
	}
}

// LatestStatsResponse is the response shape of GET /api/stats/latest.
type LatestStatsResponse struct {
	RunID      string               `json:"run_id"`
	Dataset    string               `json:"dataset"`
	Status     string               `json:"status"`
	FinishedAt float64              `json:"finished_at_unix"`
	Stats      *stats.TrackingStats `json:"stats"`
}

func (s *Server) showLatestStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var row *db.AnalysisRun
	var err error
	if dataset := r.URL.Query().Get("dataset"); dataset != "" {
		row, err = s.db.LatestRunForDataset(dataset)
		// Runs record the dataset's directory path; accept a bare
		// name relative to the data root as well.
		if errors.Is(err, db.ErrRunNotFound) && s.dataRoot != "" && !filepath.IsAbs(dataset) {
			row, err = s.db.LatestRunForDataset(filepath.Join(s.dataRoot, dataset))
		}
	} else {
		row, err = s.db.LatestRun()
	}
	if errors.Is(err, db.ErrRunNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "No runs recorded")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve latest run: %v", err))
		return
	}
	if row.StatsJSON == "" {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("Latest run for %s has no stats (status %s)", row.Dataset, row.Status))
		return
	}

	parsed, err := stats.ParseTrackingStats(row.StatsJSON)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to parse stored stats: %v", err))
		return
	}

	resp := LatestStatsResponse{
		RunID:      row.ID,
		Dataset:    row.Dataset,
		Status:     row.Status,
		FinishedAt: row.FinishedAt,
		Stats:      parsed,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"units":             s.units,
		"data_root":         s.dataRoot,
		"microns_per_pixel": s.cal.MicronsPerPixel,
		"minutes_per_frame": s.cal.MinutesPerFrame,
	}
	if s.analyzer != nil {
		config["mask_pattern"] = s.analyzer.Opts.MaskPattern
		config["table_candidates"] = s.analyzer.Opts.Candidates
		config["short_track_frames"] = s.analyzer.Opts.ShortFrames
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
