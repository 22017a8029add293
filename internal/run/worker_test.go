package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lineage.report/internal/ctc"
	"github.com/banshee-data/lineage.report/internal/db"
	"github.com/banshee-data/lineage.report/internal/metrics"
	"github.com/banshee-data/lineage.report/internal/testutil"
	"github.com/banshee-data/lineage.report/internal/timeutil"
)

func TestWorkerRunOnce_AnalyzesNewDatasets(t *testing.T) {
	t.Parallel()

	dataRoot := t.TempDir()
	plate := filepath.Join(dataRoot, "plate-1")
	require.NoError(t, os.Mkdir(plate, 0o755))
	testutil.WriteDivisionDataset(t, plate)

	// A stray file in the data root is not a dataset
	require.NoError(t, os.WriteFile(filepath.Join(dataRoot, "notes.txt"), []byte("x"), 0o644))

	store := newStore(t)
	a := NewAnalyzer(Options{}, store, nil)
	w := NewWorker(a, dataRoot, time.Minute)

	var results []*Result
	w.OnResult = func(r *Result) { results = append(results, r) }

	require.NoError(t, w.RunOnce(context.Background()))
	require.Len(t, results, 1)
	assert.Equal(t, plate, results[0].Dataset)
	assert.Equal(t, 15, results[0].Summary.TotalPoints)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunStatusComplete, runs[0].Status)

	// A second scan finds nothing new
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Len(t, results, 1)
	runs, err = store.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestWorkerRunOnce_ReanalyzesGrownDataset(t *testing.T) {
	t.Parallel()

	dataRoot := t.TempDir()
	plate := filepath.Join(dataRoot, "plate-1")
	require.NoError(t, os.Mkdir(plate, 0o755))
	testutil.WriteDivisionDataset(t, plate)

	store := newStore(t)
	a := NewAnalyzer(Options{}, store, nil)
	w := NewWorker(a, dataRoot, time.Minute)

	require.NoError(t, w.RunOnce(context.Background()))

	// The acquisition exports one more frame
	labels := make([]uint16, 16)
	labels[0] = 2
	labels[15] = 3
	testutil.WriteMask(t, filepath.Join(plate, "mask010.tif"), 4, 4, labels)

	require.NoError(t, w.RunOnce(context.Background()))

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	latest, err := store.LatestRunForDataset(plate)
	require.NoError(t, err)
	assert.Equal(t, 11, latest.FrameCount)

	// Stable again
	require.NoError(t, w.RunOnce(context.Background()))
	runs, err = store.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestWorkerRunOnce_FailedDatasetNotRetried(t *testing.T) {
	t.Parallel()

	dataRoot := t.TempDir()
	broken := filepath.Join(dataRoot, "broken")
	require.NoError(t, os.Mkdir(broken, 0o755))
	// Masks without any lineage table
	labels := make([]uint16, 16)
	labels[0] = 1
	testutil.WriteMask(t, filepath.Join(broken, "mask000.tif"), 4, 4, labels)

	store := newStore(t)
	a := NewAnalyzer(Options{}, store, nil)
	w := NewWorker(a, dataRoot, time.Minute)

	require.NoError(t, w.RunOnce(context.Background()))
	require.NoError(t, w.RunOnce(context.Background()))

	// One failed run, not one per scan
	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunStatusFailed, runs[0].Status)

	// The table arriving later changes nothing until the mask count
	// does, so complete the dataset with a second frame too
	testutil.WriteLineage(t, filepath.Join(broken, ctc.ResultTableName), []ctc.Track{
		{ID: 1, Start: 0, End: 1, Parent: 0},
	})
	testutil.WriteMask(t, filepath.Join(broken, "mask001.tif"), 4, 4, labels)

	require.NoError(t, w.RunOnce(context.Background()))
	latest, err := store.LatestRunForDataset(broken)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusComplete, latest.Status)
}

func TestWorkerRunOnce_WithoutStore(t *testing.T) {
	t.Parallel()

	dataRoot := t.TempDir()
	plate := filepath.Join(dataRoot, "plate-1")
	require.NoError(t, os.Mkdir(plate, 0o755))
	testutil.WriteDivisionDataset(t, plate)

	a := NewAnalyzer(Options{}, nil, nil)
	w := NewWorker(a, dataRoot, time.Minute)

	analyzed := 0
	w.OnResult = func(*Result) { analyzed++ }

	require.NoError(t, w.RunOnce(context.Background()))
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, 1, analyzed)
}

func TestWorkerRunOnce_MissingDataRoot(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Options{}, nil, nil)
	w := NewWorker(a, filepath.Join(t.TempDir(), "nope"), time.Minute)

	err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan data root")
}

func TestWorkerRunOnce_ContextCanceled(t *testing.T) {
	t.Parallel()

	dataRoot := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dataRoot, "plate-1"), 0o755))

	a := NewAnalyzer(Options{}, nil, nil)
	w := NewWorker(a, dataRoot, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.RunOnce(ctx), context.Canceled)
}

func TestWorkerRunOnce_CountsScans(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	a := NewAnalyzer(Options{}, nil, m)
	w := NewWorker(a, t.TempDir(), time.Minute)

	require.NoError(t, w.RunOnce(context.Background()))
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, uint64(2), m.WatchScans.Load())
}

func TestWorkerStartStop(t *testing.T) {
	t.Parallel()

	dataRoot := t.TempDir()
	plate := filepath.Join(dataRoot, "plate-1")
	require.NoError(t, os.Mkdir(plate, 0o755))
	testutil.WriteDivisionDataset(t, plate)

	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	a := NewAnalyzer(Options{}, nil, nil)
	a.Clock = clock
	w := NewWorker(a, dataRoot, time.Minute)

	results := make(chan *Result, 4)
	w.OnResult = func(r *Result) { results <- r }

	w.Start()
	defer w.Stop()

	// Drive the mock clock until the ticker fires and the scan lands.
	// The first advances may run before the worker goroutine has
	// registered its ticker, so keep nudging.
	deadline := time.NewTimer(5 * time.Second)
	defer deadline.Stop()
	for {
		clock.Advance(time.Minute)
		select {
		case r := <-results:
			assert.Equal(t, plate, r.Dataset)
			return
		case <-deadline.C:
			t.Fatal("worker never analyzed the dataset")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
