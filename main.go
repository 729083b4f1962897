// main.go - entry point: one-shot conversion or watch-mode daemon
package main

import (
	"context"
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

	"github.com/joho/godotenv"

	"github.com/eemil100/tcx-converter/internal/convert"
	"github.com/eemil100/tcx-converter/internal/database"
	"github.com/eemil100/tcx-converter/internal/health"
	"github.com/eemil100/tcx-converter/internal/merge"
	"github.com/eemil100/tcx-converter/internal/web"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
)

type config struct {
	xmlDir    string
	routeFile string
	output    string
	tolerance time.Duration

	watch       bool
	inputDir    string
	outputDir   string
	schedule    string
	addr        string
	dbPath      string
	templateDir string
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := parseFlags()

	if cfg.watch {
		runWatch(cfg)
		return
	}
	runOnce(cfg)
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.xmlDir, "xml-dir", os.Getenv("XML_DIR"),
		"directory containing Apple Health XML export files (optional: without it the output has no heart rate)")
	flag.StringVar(&cfg.routeFile, "gpx", "", "route file to convert (GPX or FIT)")
	flag.StringVar(&cfg.output, "output", "workout.tcx", "output TCX filename")
	flag.DurationVar(&cfg.tolerance, "tolerance", merge.DefaultConfig().Tolerance,
		"max time difference for a heart rate match (negative disables the limit)")

	flag.BoolVar(&cfg.watch, "watch", false, "run as a daemon that scans -input-dir on a schedule")
	flag.StringVar(&cfg.inputDir, "input-dir", envOr("INPUT_DIR", "./data/routes"), "watch mode: directory scanned for route files")
	flag.StringVar(&cfg.outputDir, "output-dir", envOr("OUTPUT_DIR", "./data/tcx"), "watch mode: directory TCX files are written to")
	flag.StringVar(&cfg.schedule, "schedule", envOr("SCAN_SCHEDULE", "@hourly"), "watch mode: cron schedule for directory scans")
	flag.StringVar(&cfg.addr, "addr", envOr("LISTEN_ADDR", ":8888"), "watch mode: status page listen address")
	flag.StringVar(&cfg.dbPath, "db", os.Getenv("DB_PATH"), "watch mode: conversion catalog path (default DATA_DIR/catalog.db)")
	cfg.templateDir = envOr("TEMPLATE_DIR", "./internal/web/templates")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tcx-converter - merge Apple Health heart rate with a GPS route into TCX\n\n")
		fmt.Fprintf(os.Stderr, "One-shot:\n")
		fmt.Fprintf(os.Stderr, "  %s -xml-dir ./export -gpx run.gpx -output run.tcx\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Watch mode:\n")
		fmt.Fprintf(os.Stderr, "  %s -watch -xml-dir ./export -input-dir ./routes -output-dir ./tcx\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mergeConfig(cfg config) merge.Config {
	mc := merge.DefaultConfig()
	mc.Tolerance = cfg.tolerance
	return mc
}

// loadHealthData parses the export directory, or returns nil when none is
// configured.
func loadHealthData(xmlDir string) (*health.Data, error) {
	if xmlDir == "" {
		return nil, nil
	}
	data, err := health.ParseDir(xmlDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d heart rate samples and %d workouts from %s",
		len(data.Samples), len(data.Workouts), xmlDir)
	return data, nil
}

// One-shot mode: convert a single route file and exit.
func runOnce(cfg config) {
	if cfg.routeFile == "" {
		fmt.Fprintln(os.Stderr, "missing -gpx: nothing to convert")
		flag.Usage()
		os.Exit(2)
	}

	healthData, err := loadHealthData(cfg.xmlDir)
	if err != nil {
		log.Fatal("Failed to load health export: ", err)
	}
	if healthData == nil {
		log.Println("No -xml-dir given, converting without heart rate")
	}

	svc := convert.NewService(healthData, nil, mergeConfig(cfg))
	result, err := svc.Convert(context.Background(), cfg.routeFile, cfg.output)
	if err != nil {
		log.Fatal("Conversion failed: ", err)
	}

	printResult(result)
}

func printResult(result *convert.Result) {
	fmt.Printf("Wrote %s\n", result.OutputFile)
	fmt.Printf("  trackpoints:  %d\n", result.PointCount)
	fmt.Printf("  distance:     %.2f km\n", result.DistanceMeters/1000)
	fmt.Printf("  duration:     %s\n", time.Duration(result.DurationSeconds*float64(time.Second)).Round(time.Second))
	if result.ActivityType != "" {
		fmt.Printf("  workout:      %s starting %s\n", result.ActivityType, result.ActivityStart.Format(time.RFC3339))
	} else {
		fmt.Printf("  workout:      none matched in health export\n")
	}
	fmt.Printf("  heart rate:   %d/%d trackpoints matched\n", result.Stats.Matched, result.Stats.TrackPoints)
	if result.Stats.Matched > 0 {
		fmt.Printf("  max HR gap:   %s\n", result.Stats.MaxMatchGap.Round(time.Millisecond))
	}
}

// Watch mode: cron-scheduled scans plus status pages, with graceful
// shutdown on SIGINT/SIGTERM.
type App struct {
	catalog  *database.Catalog
	cron     *cron.Cron
	server   *http.Server
	cfg      config
	mergeCfg merge.Config

	scanMu   sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown chan os.Signal
}

func runWatch(cfg config) {
	app := &App{
		cfg:      cfg,
		mergeCfg: mergeConfig(cfg),
		shutdown: make(chan os.Signal, 1),
	}

	if err := app.init(); err != nil {
		log.Fatal("Failed to initialize app: ", err)
	}

	app.start()

	signal.Notify(app.shutdown, os.Interrupt, syscall.SIGTERM)
	<-app.shutdown

	app.stop()
}

func (app *App) init() error {
	app.ctx, app.cancel = context.WithCancel(context.Background())

	for _, dir := range []string{app.cfg.inputDir, app.cfg.outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	dbPath, err := resolveDBPath(app.cfg.dbPath)
	if err != nil {
		return err
	}
	app.catalog, err = database.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open catalog %s: %w", dbPath, err)
	}

	app.cron = cron.New()
	if _, err := app.cron.AddFunc(app.cfg.schedule, app.runScan); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", app.cfg.schedule, err)
	}

	handler := web.NewHandler(app.catalog)
	if err := handler.LoadTemplates(app.cfg.templateDir); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	app.server = &http.Server{
		Addr:    app.cfg.addr,
		Handler: setupRoutes(handler),
	}

	return nil
}

func (app *App) start() {
	app.cron.Start()
	log.Printf("Scanning %s on schedule %q", app.cfg.inputDir, app.cfg.schedule)

	// First scan right away; the schedule only covers later ones.
	go app.runScan()

	go func() {
		log.Printf("Status pages on http://localhost%s", app.server.Addr)
		if err := app.server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
}

// runScan is the cron entry point. Scans are serialized: a tick that fires
// while the previous scan is still running is skipped.
func (app *App) runScan() {
	if !app.scanMu.TryLock() {
		log.Println("Scan already running, skipping this tick")
		return
	}
	defer app.scanMu.Unlock()

	// Health data is re-read each scan so a freshly dropped export is
	// picked up without a restart.
	healthData, err := loadHealthData(app.cfg.xmlDir)
	if err != nil {
		log.Printf("Scan aborted, health export unreadable: %v", err)
		return
	}

	svc := convert.NewService(healthData, app.catalog, app.mergeCfg)
	if err := svc.ScanAndConvert(app.ctx, app.cfg.inputDir, app.cfg.outputDir); err != nil {
		log.Printf("Scan failed: %v", err)
	}
}

func (app *App) stop() {
	log.Println("Shutting down...")

	app.cancel()
	app.cron.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if app.catalog != nil {
		app.catalog.Close()
	}

	log.Println("Shutdown complete")
}

func resolveDBPath(dbPath string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	dataDir := envOr("DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dataDir, "catalog.db"), nil
}

func setupRoutes(handler *web.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Status pages
	mux.HandleFunc("/", handler.Index)
	mux.HandleFunc("/conversions", handler.Conversions)
	mux.HandleFunc("/conversion", handler.Conversion)

	return mux
}
