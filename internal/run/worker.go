package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/lineage.report/internal/db"
	"github.com/banshee-data/lineage.report/internal/maskio"
	"github.com/banshee-data/lineage.report/internal/metrics"
	"github.com/banshee-data/lineage.report/internal/monitoring"
	"github.com/banshee-data/lineage.report/internal/timeutil"
)

// Worker periodically rescans the data root for dataset directories
// and analyzes any without a recorded run, or whose mask count changed
// since the last one. Long acquisitions export frames progressively;
// the count check picks up finished exports.
type Worker struct {
	Analyzer *Analyzer
	DataRoot string
	Interval time.Duration
	Clock    timeutil.Clock
	Metrics  *metrics.Metrics

	// OnResult, when set, receives each successful result after it is
	// persisted.
	OnResult func(*Result)

	// seen tracks analyzed directories when no store is attached.
	seen     map[string]int
	stopChan chan struct{}
}

// NewWorker returns a worker over the analyzer's clock.
func NewWorker(analyzer *Analyzer, dataRoot string, interval time.Duration) *Worker {
	return &Worker{
		Analyzer: analyzer,
		DataRoot: dataRoot,
		Interval: interval,
		Clock:    analyzer.Clock,
		Metrics:  analyzer.Metrics,
		seen:     make(map[string]int),
		stopChan: make(chan struct{}),
	}
}

// Start runs the periodic scan loop in a goroutine.
func (w *Worker) Start() {
	go func() {
		ticker := w.Clock.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if err := w.RunOnce(context.Background()); err != nil {
					monitoring.Logf("watch: scan failed: %v", err)
				}
			case <-w.stopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop. The current scan, if any, runs to
// completion.
func (w *Worker) Stop() {
	close(w.stopChan)
}

// RunOnce scans the data root once. Not safe for concurrent use with
// a started worker.
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.Metrics != nil {
		w.Metrics.WatchScans.Add(1)
	}

	entries, err := os.ReadDir(w.DataRoot)
	if err != nil {
		return fmt.Errorf("scan data root %s: %w", w.DataRoot, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		dir := filepath.Join(w.DataRoot, entry.Name())
		masks := w.maskCount(dir)
		if !w.shouldAnalyze(dir, masks) {
			continue
		}

		result, err := w.Analyzer.Analyze(ctx, dir)
		if err != nil {
			monitoring.Logf("watch: analyze %s: %v", dir, err)
			w.seen[dir] = masks
			continue
		}
		monitoring.Logf("watch: analyzed %s: %d tracks, %d points (run %s)",
			dir, result.Summary.TotalTracks, result.Summary.TotalPoints, result.RunID)
		w.seen[dir] = masks
		if w.OnResult != nil {
			w.OnResult(result)
		}
	}
	return nil
}

// shouldAnalyze reports whether dir needs a run. The in-memory scan
// history stops a failing dataset from being retried every interval;
// the store check survives restarts and catches datasets that grew
// since their last completed run.
func (w *Worker) shouldAnalyze(dir string, masks int) bool {
	if last, ok := w.seen[dir]; ok && masks == last {
		return false
	}
	if w.Analyzer.Store == nil {
		return true
	}

	last, err := w.Analyzer.Store.LatestRunForDataset(dir)
	if errors.Is(err, db.ErrRunNotFound) {
		return true
	}
	if err != nil {
		monitoring.Logf("watch: lookup %s: %v", dir, err)
		return false
	}
	return masks != last.FrameCount
}

func (w *Worker) maskCount(dir string) int {
	pattern := w.Analyzer.Opts.MaskPattern
	if pattern == "" {
		pattern = maskio.DefaultMaskPattern
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	return len(paths)
}
