package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/lineage.report/internal/ctc"
	"github.com/banshee-data/lineage.report/internal/trajectory"
)

// Run statuses recorded in analysis_runs.
const (
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// ErrRunNotFound is returned when no run exists for the requested id.
var ErrRunNotFound = errors.New("run not found")

// AnalysisRun is one recorded invocation of the analysis pipeline over
// a dataset directory. Failed runs keep their error text and whatever
// counts were gathered before the failure.
type AnalysisRun struct {
	ID            string  `json:"id"`
	Dataset       string  `json:"dataset"`
	TablePath     string  `json:"table_path"`
	Status        string  `json:"status"`
	Error         string  `json:"error,omitempty"`
	StartedAt     float64 `json:"started_at_unix"`
	FinishedAt    float64 `json:"finished_at_unix"`
	FrameCount    int     `json:"frame_count"`
	TrackCount    int     `json:"track_count"`
	PointCount    int     `json:"point_count"`
	DivisionCount int     `json:"division_count"`
	StatsJSON     string  `json:"stats_json,omitempty"`
	Report        string  `json:"report,omitempty"`
}

// RunWarning is a recoverable anomaly noted during a run. TrackID and
// Frame are nil when the warning is not tied to a specific track or
// frame.
type RunWarning struct {
	RunID   string `json:"run_id,omitempty"`
	Kind    string `json:"kind"`
	TrackID *int64 `json:"track_id,omitempty"`
	Frame   *int64 `json:"frame,omitempty"`
	Message string `json:"message"`
}

const runColumns = `id, dataset, table_path, status, error,
	started_at_unix, finished_at_unix, frame_count, track_count,
	point_count, division_count, stats_json, report`

// InsertRun records a run together with its trajectory points and
// warnings in a single transaction.
func (db *DB) InsertRun(run *AnalysisRun, points []trajectory.Point, warnings []RunWarning) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO analysis_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.TablePath, run.Status, run.Error,
		run.StartedAt, run.FinishedAt, run.FrameCount, run.TrackCount,
		run.PointCount, run.DivisionCount, run.StatsJSON, run.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO trajectory_points (run_id, track_id, frame, y, x)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(run.ID, int64(p.TrackID), p.Frame, p.Y, p.X); err != nil {
			return fmt.Errorf("failed to insert trajectory point: %w", err)
		}
	}

	for _, w := range warnings {
		_, err := tx.Exec(`INSERT INTO run_warnings (run_id, kind, track_id, frame, message)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, w.Kind, w.TrackID, w.Frame, w.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var run AnalysisRun
	err := row.Scan(
		&run.ID, &run.Dataset, &run.TablePath, &run.Status, &run.Error,
		&run.StartedAt, &run.FinishedAt, &run.FrameCount, &run.TrackCount,
		&run.PointCount, &run.DivisionCount, &run.StatsJSON, &run.Report,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (*AnalysisRun, error) {
	run, err := scanRun(db.QueryRow(
		`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns up to 50 runs.
func (db *DB) ListRuns(limit int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(
		`SELECT `+runColumns+` FROM analysis_runs
		ORDER BY started_at_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []AnalysisRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (*AnalysisRun, error) {
	run, err := scanRun(db.QueryRow(
		`SELECT ` + runColumns + ` FROM analysis_runs
		ORDER BY started_at_unix DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// LatestRunForDataset returns the most recently started run for the
// named dataset.
func (db *DB) LatestRunForDataset(dataset string) (*AnalysisRun, error) {
	run, err := scanRun(db.QueryRow(
		`SELECT `+runColumns+` FROM analysis_runs
		WHERE dataset = ? ORDER BY started_at_unix DESC LIMIT 1`, dataset))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run for %s: %w", dataset, err)
	}
	return run, nil
}

// TrajectoryForRun returns the stored trajectory points for a run,
// ordered by track then frame.
func (db *DB) TrajectoryForRun(runID string) ([]trajectory.Point, error) {
	rows, err := db.Query(
		`SELECT track_id, frame, y, x FROM trajectory_points
		WHERE run_id = ? ORDER BY track_id, frame`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trajectory for %s: %w", runID, err)
	}
	defer rows.Close()

	points := []trajectory.Point{}
	for rows.Next() {
		var p trajectory.Point
		var trackID int64
		if err := rows.Scan(&trackID, &p.Frame, &p.Y, &p.X); err != nil {
			return nil, fmt.Errorf("failed to scan trajectory row: %w", err)
		}
		p.TrackID = ctc.TrackID(trackID)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}

// WarningsForRun returns the warnings recorded for a run in insertion
// order.
func (db *DB) WarningsForRun(runID string) ([]RunWarning, error) {
	rows, err := db.Query(
		`SELECT run_id, kind, track_id, frame, message FROM run_warnings
		WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings for %s: %w", runID, err)
	}
	defer rows.Close()

	warnings := []RunWarning{}
	for rows.Next() {
		var w RunWarning
		if err := rows.Scan(&w.RunID, &w.Kind, &w.TrackID, &w.Frame, &w.Message); err != nil {
			return nil, fmt.Errorf("failed to scan warning row: %w", err)
		}
		warnings = append(warnings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return warnings, nil
}

// DeleteRun removes a run and, through the schema's cascade rules, its
// trajectory points and warnings.
func (db *DB) DeleteRun(id string) error {
	result, err := db.Exec(`DELETE FROM analysis_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}
