// Package run orchestrates one full analysis pass over a dataset
// directory: resolve the lineage table, build the forest, scan the
// mask stack, compute statistics, fuse trajectories, and persist the
// result.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lineage.report/internal/census"
	"github.com/banshee-data/lineage.report/internal/config"
	"github.com/banshee-data/lineage.report/internal/ctc"
	"github.com/banshee-data/lineage.report/internal/db"
	"github.com/banshee-data/lineage.report/internal/fsutil"
	"github.com/banshee-data/lineage.report/internal/lineage"
	"github.com/banshee-data/lineage.report/internal/maskio"
	"github.com/banshee-data/lineage.report/internal/metrics"
	"github.com/banshee-data/lineage.report/internal/monitoring"
	"github.com/banshee-data/lineage.report/internal/stats"
	"github.com/banshee-data/lineage.report/internal/timeutil"
	"github.com/banshee-data/lineage.report/internal/trajectory"
)

// Warning kinds recorded against a run. Stable strings: they are
// stored in run_warnings and filtered on by consumers.
const (
	// WarnDanglingParent marks a track whose parent id is not in the
	// table; the track was recovered as a root.
	WarnDanglingParent = "dangling_parent"

	// WarnUntrackedLabel marks a mask label with no lineage table row.
	WarnUntrackedLabel = "untracked_label"

	// WarnUnobservedTrack marks a declared track with no pixels in any
	// frame.
	WarnUnobservedTrack = "unobserved_track"

	// WarnSpanPastEnd marks a track declared beyond the last frame of
	// the mask stack.
	WarnSpanPastEnd = "span_past_end"

	// WarnFrameShape marks a mask whose dimensions differ from the
	// first frame's.
	WarnFrameShape = "frame_shape"
)

// Warning is one recoverable condition found during analysis. TrackID
// is zero and Frame is negative when the warning is not tied to a
// track or frame.
type Warning struct {
	Kind    string
	TrackID ctc.TrackID
	Frame   int
	Message string
}

// Options carries the per-run analysis parameters.
type Options struct {
	// Candidates are the lineage table filenames probed in order.
	// Empty falls back to the ctc defaults.
	Candidates []string

	// MaskPattern is the mask filename glob. Empty falls back to the
	// maskio default.
	MaskPattern string

	// ShortFrames is the short-track threshold in observed frames.
	ShortFrames int

	// CensusWorkers sizes the frame scan pool. Values below 2 scan
	// sequentially.
	CensusWorkers int
}

// OptionsFromTuning derives analysis options from a tuning config.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	return Options{
		Candidates:    cfg.GetLineageCandidates(),
		MaskPattern:   cfg.GetMaskPattern(),
		ShortFrames:   cfg.GetShortTrackFrames(),
		CensusWorkers: cfg.GetCensusWorkers(),
	}
}

// Result is the outcome of one completed analysis.
type Result struct {
	RunID     string
	Dataset   string
	TablePath string

	Stats   *stats.TrackingStats
	Report  string
	Summary trajectory.Summary
	Points  []trajectory.Point

	// DivisionEvents counts parents with two or more children, which
	// is smaller than Summary.Divisions (child tracks with a parent).
	DivisionEvents int

	Warnings []Warning
	Census   *census.Census
	Duration time.Duration
}

// Analyzer runs analyses. Store and Metrics may be nil, in which case
// runs are not persisted or counted.
type Analyzer struct {
	FS      fsutil.FileSystem
	Opts    Options
	Store   *db.DB
	Metrics *metrics.Metrics
	Clock   timeutil.Clock
}

// NewAnalyzer returns an analyzer over the real filesystem and clock.
func NewAnalyzer(opts Options, store *db.DB, m *metrics.Metrics) *Analyzer {
	return &Analyzer{
		FS:      fsutil.OSFileSystem{},
		Opts:    opts,
		Store:   store,
		Metrics: m,
		Clock:   timeutil.RealClock{},
	}
}

// Analyze runs the full pipeline over the dataset directory dir.
// Failures are recorded as failed runs when a store is attached; the
// error is returned either way.
func (a *Analyzer) Analyze(ctx context.Context, dir string) (*Result, error) {
	started := a.Clock.Now()
	if a.Metrics != nil {
		a.Metrics.RunsStarted.Add(1)
	}

	result, err := a.analyze(ctx, dir)
	finished := a.Clock.Now()

	if err != nil {
		if a.Metrics != nil {
			a.Metrics.RunsFailed.Add(1)
		}
		if a.Store != nil {
			failed := &db.AnalysisRun{
				ID:         uuid.NewString(),
				Dataset:    dir,
				Status:     db.RunStatusFailed,
				Error:      err.Error(),
				StartedAt:  unixSeconds(started),
				FinishedAt: unixSeconds(finished),
			}
			if serr := a.Store.InsertRun(failed, nil, nil); serr != nil {
				monitoring.Logf("run: failed to record failed run for %s: %v", dir, serr)
			}
		}
		return nil, err
	}

	result.Duration = finished.Sub(started)

	if a.Metrics != nil {
		a.Metrics.FramesScanned.Add(uint64(result.Stats.FrameCount))
		a.Metrics.PointsEmitted.Add(uint64(len(result.Points)))
		a.Metrics.WarningsEmitted.Add(uint64(len(result.Warnings)))
		a.Metrics.UpdateAnalyzeDuration(result.Duration)
		a.Metrics.MarkRunCompleted(finished)
	}

	if a.Store != nil {
		statsJSON, jerr := result.Stats.ToJSON()
		if jerr != nil {
			return nil, fmt.Errorf("encode stats: %w", jerr)
		}
		row := &db.AnalysisRun{
			ID:            result.RunID,
			Dataset:       dir,
			TablePath:     result.TablePath,
			Status:        db.RunStatusComplete,
			StartedAt:     unixSeconds(started),
			FinishedAt:    unixSeconds(finished),
			FrameCount:    result.Stats.FrameCount,
			TrackCount:    result.Stats.TrackCount,
			PointCount:    result.Summary.TotalPoints,
			DivisionCount: result.Summary.Divisions,
			StatsJSON:     statsJSON,
			Report:        result.Report,
		}
		if err := a.Store.InsertRun(row, result.Points, dbWarnings(result.RunID, result.Warnings)); err != nil {
			return nil, fmt.Errorf("persist run: %w", err)
		}
	}

	return result, nil
}

// analyze runs the pipeline stages, checking for cancellation between
// the expensive ones.
func (a *Analyzer) analyze(ctx context.Context, dir string) (*Result, error) {
	table, tablePath, err := ctc.ResolveTable(a.FS, dir, a.Opts.Candidates)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest, dangling := lineage.Build(table)

	frames, err := maskio.LoadStack(dir, a.Opts.MaskPattern)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := census.Build(frames, a.Opts.CensusWorkers)

	warnings := make([]Warning, 0, len(dangling))
	for _, d := range dangling {
		warnings = append(warnings, Warning{
			Kind:    WarnDanglingParent,
			TrackID: d.ID,
			Frame:   -1,
			Message: d.Error(),
		})
	}
	warnings = append(warnings, consistencyWarnings(table, c, frames)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := stats.Compute(c, a.Opts.ShortFrames)
	points, summary := trajectory.Fuse(table, c)

	return &Result{
		RunID:          uuid.NewString(),
		Dataset:        dir,
		TablePath:      tablePath,
		Stats:          st,
		Report:         stats.RenderReport(st),
		Summary:        summary,
		Points:         points,
		DivisionEvents: forest.DivisionEvents(),
		Warnings:       warnings,
		Census:         c,
	}, nil
}

// consistencyWarnings cross-checks the lineage table against the
// observed masks: labels without table rows, tracks without pixels,
// spans past the end of the stack, and inconsistent frame shapes.
func consistencyWarnings(table *ctc.Table, c *census.Census, frames []maskio.Frame) []Warning {
	var warnings []Warning

	observed := stats.ObservedLengths(c)
	for _, id := range c.AllIDs() {
		if !table.Has(id) {
			warnings = append(warnings, Warning{
				Kind:    WarnUntrackedLabel,
				TrackID: id,
				Frame:   -1,
				Message: fmt.Sprintf("label %d observed in masks but not declared in the lineage table", id),
			})
		}
	}

	lastFrame := c.Frames() - 1
	for _, tr := range table.Tracks() {
		if _, ok := observed[tr.ID]; !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnUnobservedTrack,
				TrackID: tr.ID,
				Frame:   -1,
				Message: fmt.Sprintf("track %d declared over frames %d-%d but never observed", tr.ID, tr.Start, tr.End),
			})
		}
		if tr.End > lastFrame {
			warnings = append(warnings, Warning{
				Kind:    WarnSpanPastEnd,
				TrackID: tr.ID,
				Frame:   tr.End,
				Message: fmt.Sprintf("track %d declared through frame %d but the stack ends at frame %d", tr.ID, tr.End, lastFrame),
			})
		}
	}

	if len(frames) > 0 {
		w0, h0 := frames[0].Width, frames[0].Height
		for i := 1; i < len(frames); i++ {
			if frames[i].Width != w0 || frames[i].Height != h0 {
				warnings = append(warnings, Warning{
					Kind:  WarnFrameShape,
					Frame: i,
					Message: fmt.Sprintf("mask %s is %dx%d, expected %dx%d",
						frames[i].Path, frames[i].Width, frames[i].Height, w0, h0),
				})
			}
		}
	}

	return warnings
}

// dbWarnings converts run warnings to their storage form.
func dbWarnings(runID string, warnings []Warning) []db.RunWarning {
	out := make([]db.RunWarning, 0, len(warnings))
	for _, w := range warnings {
		rw := db.RunWarning{RunID: runID, Kind: w.Kind, Message: w.Message}
		if w.TrackID != 0 {
			id := int64(w.TrackID)
			rw.TrackID = &id
		}
		if w.Frame >= 0 {
			frame := int64(w.Frame)
			rw.Frame = &frame
		}
		out = append(out, rw)
	}
	return out
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}
