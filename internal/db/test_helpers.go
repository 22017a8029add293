package db

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/lineage.report/internal/trajectory"
)

// Helper function for creating pointer values
func int64Ptr(v int64) *int64 {
	return &v
}

// newTestDB opens a fully migrated database in a temporary directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// sampleRun returns a completed run with deterministic counts. The
// startedAt offset keeps test runs ordered.
func sampleRun(id, dataset string, startedAt float64) *AnalysisRun {
	return &AnalysisRun{
		ID:            id,
		Dataset:       dataset,
		TablePath:     "res_track.txt",
		Status:        RunStatusComplete,
		StartedAt:     startedAt,
		FinishedAt:    startedAt + 2.5,
		FrameCount:    10,
		TrackCount:    3,
		PointCount:    15,
		DivisionCount: 2,
		StatsJSON:     `{"frame_count":10}`,
		Report:        "report text",
	}
}

// samplePoints returns a small two-track trajectory in store order.
func samplePoints() []trajectory.Point {
	return []trajectory.Point{
		{TrackID: 1, Frame: 0, Y: 0.5, X: 0.5},
		{TrackID: 1, Frame: 1, Y: 0.5, X: 1.5},
		{TrackID: 2, Frame: 5, Y: 0, X: 0},
	}
}
