package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lineage.report/internal/api"
	"github.com/banshee-data/lineage.report/internal/config"
	"github.com/banshee-data/lineage.report/internal/db"
	"github.com/banshee-data/lineage.report/internal/metrics"
	"github.com/banshee-data/lineage.report/internal/monitor"
	"github.com/banshee-data/lineage.report/internal/run"
	"github.com/banshee-data/lineage.report/internal/trajectory"
	"github.com/banshee-data/lineage.report/internal/units"
	"github.com/banshee-data/lineage.report/internal/version"
)

// Main
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "analyze":
		handleAnalyze(args)
	case "fuse":
		handleFuse(args)
	case "report":
		handleReport(args)
	case "serve":
		handleServe(args)
	case "migrate":
		handleMigrate(args)
	case "version":
		fmt.Printf("lineage-report version %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lineage-report - cell tracking analytics for CTC-style datasets

Usage: lineage-report <command> [options]

Commands:
  analyze    Analyze a dataset directory and print the evaluation report
  fuse       Fuse lineage table and masks into a trajectory export
  report     Print the stored report for a recorded run
  serve      Run the HTTP server and dataset watcher
  migrate    Manage the database schema (up, down, status, ...)
  version    Show lineage-report version
  help       Show this help message

A dataset directory holds a lineage table (res_track.txt or
man_track.txt) next to a 16-bit TIFF mask stack (mask000.tif, ...).

Examples:
  # One-shot evaluation of a dataset
  lineage-report analyze ./data/plate-1

  # Analyze and record the run
  lineage-report analyze -db lineage.db ./data/plate-1

  # Export a calibrated trajectory
  lineage-report fuse -format csv -units um ./data/plate-1

  # Serve the API, charts and watcher
  lineage-report serve -config config/tuning.defaults.json

  # Apply pending schema migrations
  lineage-report migrate -db lineage.db up`)
}

// loadTuning loads the tuning config from path, or from the default
// location when path is empty. A missing default file is not an
// error; the built-in defaults apply.
func loadTuning(path string) *config.TuningConfig {
	if path != "" {
		cfg, err := config.LoadTuningConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		return cfg
	}
	if cfg, err := config.LoadTuningConfig(config.DefaultConfigPath); err == nil {
		return cfg
	}
	return config.EmptyTuningConfig()
}

func handleAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Tuning config path")
	dbFile := fs.String("db", "", "Record the run in this SQLite database")
	workers := fs.Int("workers", 0, "Frame scan workers (overrides config)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: lineage-report analyze [options] <dataset-dir>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	dir := fs.Arg(0)

	cfg := loadTuning(*configPath)
	opts := run.OptionsFromTuning(cfg)
	if *workers > 0 {
		opts.CensusWorkers = *workers
	}

	var store *db.DB
	if *dbFile != "" {
		var err error
		store, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	analyzer := run.NewAnalyzer(opts, store, nil)
	res, err := analyzer.Analyze(context.Background(), dir)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	fmt.Print(res.Report)
	for _, w := range res.Warnings {
		log.Printf("warning: %s", w.Message)
	}
	if store != nil {
		log.Printf("Recorded run %s (%v)", res.RunID, res.Duration.Round(time.Millisecond))
	}
}

func handleFuse(args []string) {
	fs := flag.NewFlagSet("fuse", flag.ExitOnError)
	configPath := fs.String("config", "", "Tuning config path")
	format := fs.String("format", "csv", "Output format: csv or json")
	outFile := fs.String("o", "", "Output file (default trajectory.<format> in the dataset dir)")
	exportUnits := fs.String("units", "", "Centroid length units: px, um or mm (default px)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: lineage-report fuse [options] <dataset-dir>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	dir := fs.Arg(0)

	if *format != "csv" && *format != "json" {
		log.Fatalf("Unknown format %q (expected csv or json)", *format)
	}
	target := *exportUnits
	if target == "" {
		target = units.Pixels
	}
	if !units.IsValidLengthUnit(target) {
		log.Fatalf("Unknown units %q (expected %s)", target, units.LengthUnitsString())
	}

	cfg := loadTuning(*configPath)
	analyzer := run.NewAnalyzer(run.OptionsFromTuning(cfg), nil, nil)
	res, err := analyzer.Analyze(context.Background(), dir)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	points := res.Points
	if target != units.Pixels {
		points = trajectory.Calibrate(points, cfg.GetCalibration(), target)
	}

	outPath := *outFile
	if outPath == "" {
		outPath = filepath.Join(dir, "trajectory."+*format)
	}
	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", outPath, err)
	}
	switch *format {
	case "csv":
		err = trajectory.WriteCSV(f, points)
	case "json":
		err = trajectory.WriteJSON(f, res.Summary, points)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("Failed to write %s: %v", outPath, err)
	}

	fmt.Printf("Total tracks: %d\n", res.Summary.TotalTracks)
	fmt.Printf("Cell divisions detected: %d\n", res.Summary.Divisions)
	fmt.Printf("Total track points: %d\n", res.Summary.TotalPoints)
	fmt.Printf("Trajectory written to %s\n", outPath)
}

func handleReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbFile := fs.String("db", "lineage.db", "SQLite database with recorded runs")
	runID := fs.String("run", "", "Run id (default: the latest run)")
	dataset := fs.String("dataset", "", "Dataset path to pick the latest run for")
	fs.Parse(args)

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var row *db.AnalysisRun
	switch {
	case *runID != "":
		row, err = database.GetRun(*runID)
	case *dataset != "":
		row, err = database.LatestRunForDataset(*dataset)
	default:
		row, err = database.LatestRun()
	}
	if errors.Is(err, db.ErrRunNotFound) {
		log.Fatal("No matching run recorded")
	}
	if err != nil {
		log.Fatalf("Failed to load run: %v", err)
	}

	if row.Report == "" {
		log.Fatalf("Run %s has no report (status %s)", row.ID, row.Status)
	}
	fmt.Print(row.Report)
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Tuning config path")
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	dbFile := fs.String("db", "", "SQLite database path (overrides config)")
	dataRoot := fs.String("data-root", "", "Directory scanned for dataset directories (overrides config)")
	watchInterval := fs.Duration("watch-interval", 0, "Dataset rescan interval (overrides config)")
	noWatch := fs.Bool("no-watch", false, "Disable the dataset watcher")
	fs.Parse(args)

	cfg := loadTuning(*configPath)

	addr := *listen
	if addr == "" {
		addr = cfg.GetListenAddr()
	}
	if addr == "" {
		log.Fatal("Listen address is required")
	}
	dbPath := *dbFile
	if dbPath == "" {
		dbPath = cfg.GetDBPath()
	}
	root := *dataRoot
	if root == "" {
		root = cfg.GetDataRoot()
	}
	interval := *watchInterval
	if interval <= 0 {
		interval = cfg.GetWatchInterval()
	}

	database, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	m := metrics.New()
	analyzer := run.NewAnalyzer(run.OptionsFromTuning(cfg), database, m)
	mon := monitor.New()

	worker := run.NewWorker(analyzer, root, interval)
	worker.OnResult = mon.SetResult

	// Mount the API handlers plus the admin, chart and metrics routes.
	mux := api.NewServer(database, analyzer, root, cfg.GetCalibration(), cfg.GetExportUnits()).ServeMux()
	database.AttachAdminRoutes(mux)
	mon.Attach(mux)
	mux.Handle("/metrics", m.Handler())

	started := time.Now()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status": "ok", "service": "lineage", "version": "%s", "uptime_seconds": %.0f, "timestamp": "%s"}`,
			version.Version, time.Since(started).Seconds(), time.Now().UTC().Format(time.RFC3339))
	})

	// Create a wait group for the HTTP server and watcher routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*noWatch && root != "" {
		worker.Start()
		defer worker.Stop()
		log.Printf("Watching %s every %v", root, interval)

		// Scan once at startup so existing datasets are picked up
		// before the first tick.
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Initial dataset scan failed: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func handleMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbFile := fs.String("db", "lineage.db", "SQLite database path")
	fs.Parse(args)

	db.RunMigrateCommand(fs.Args(), *dbFile)
}
