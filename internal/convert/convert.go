// Package convert orchestrates one conversion: route file in, TCX out,
// catalog row written.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eemil100/tcx-converter/internal/database"
	"github.com/eemil100/tcx-converter/internal/health"
	"github.com/eemil100/tcx-converter/internal/merge"
	"github.com/eemil100/tcx-converter/internal/models"
	"github.com/eemil100/tcx-converter/internal/parser"
	"github.com/eemil100/tcx-converter/internal/tcx"
)

type Service struct {
	health  *health.Data
	catalog *database.Catalog
	cfg     merge.Config
}

// NewService wires a converter. healthData may be nil (no heart rate, no
// workout matching) and catalog may be nil (one-shot conversions are not
// recorded).
func NewService(healthData *health.Data, catalog *database.Catalog, cfg merge.Config) *Service {
	return &Service{
		health:  healthData,
		catalog: catalog,
		cfg:     cfg,
	}
}

// Result summarizes one finished conversion.
type Result struct {
	RouteFile  string
	OutputFile string

	ActivityStart   time.Time
	ActivityType    string
	DurationSeconds float64
	DistanceMeters  float64
	PointCount      int

	Stats merge.Stats
}

// Convert runs the full pipeline for one route file and writes the TCX to
// outputPath.
func (s *Service) Convert(ctx context.Context, routePath, outputPath string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	route, err := parser.Parse(routePath)
	if err != nil {
		return nil, err
	}

	var workout *models.Workout
	var samples []models.HeartRateSample
	if s.health != nil {
		workout = s.health.FindWorkout(route.Points[0].Time)
		samples = s.health.Samples
	}

	merged, stats, err := merge.Align(samples, route.Points, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", routePath, err)
	}
	if err := merge.AccumulateDistance(merged, s.cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", routePath, err)
	}

	doc, err := tcx.Build(workout, route.Name, merged)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", routePath, err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := doc.Write(outputPath); err != nil {
		return nil, fmt.Errorf("write %s: %w", outputPath, err)
	}

	result := buildResult(routePath, outputPath, workout, merged, stats)
	if s.catalog != nil {
		if err := s.catalog.RecordConversion(resultToConversion(result)); err != nil {
			return nil, fmt.Errorf("record conversion: %w", err)
		}
	}

	return result, nil
}

func buildResult(routePath, outputPath string, workout *models.Workout, merged []models.MergedPoint, stats merge.Stats) *Result {
	result := &Result{
		RouteFile:  routePath,
		OutputFile: outputPath,
		PointCount: len(merged),
		Stats:      stats,
	}
	if len(merged) > 0 {
		first := merged[0]
		last := merged[len(merged)-1]
		result.ActivityStart = first.Time
		result.DurationSeconds = last.Time.Sub(first.Time).Seconds()
		result.DistanceMeters = last.DistanceMeters
	}
	if workout != nil {
		result.ActivityStart = workout.Start
		result.ActivityType = workout.ActivityType
		result.DurationSeconds = workout.End.Sub(workout.Start).Seconds()
	}
	return result
}

func resultToConversion(r *Result) *database.Conversion {
	return &database.Conversion{
		RouteFile:       r.RouteFile,
		OutputFile:      r.OutputFile,
		ActivityStart:   r.ActivityStart,
		ActivityType:    r.ActivityType,
		DurationSeconds: r.DurationSeconds,
		DistanceMeters:  r.DistanceMeters,
		PointCount:      r.PointCount,
		HRMatched:       r.Stats.Matched,
		HRTotal:         r.Stats.TrackPoints,
	}
}

// ScanAndConvert converts every new route file in inputDir, writing the TCX
// files to outputDir. Files already in the catalog are skipped; a file that
// fails does not stop the scan.
func (s *Service) ScanAndConvert(ctx context.Context, inputDir, outputDir string) error {
	routes, err := findRouteFiles(inputDir)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Printf("No route files in %s\n", inputDir)
		return nil
	}

	startTime := time.Now()
	fmt.Printf("Scanning %d route files in %s\n", len(routes), inputDir)
	defer func() {
		fmt.Printf("Scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	}()

	converted, skipped, failed := 0, 0, 0
	for i, routePath := range routes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.catalog != nil {
			exists, err := s.catalog.ConversionExists(routePath)
			if err != nil {
				return fmt.Errorf("check catalog: %w", err)
			}
			if exists {
				skipped++
				continue
			}
		}

		fmt.Printf("[%d/%d] Converting %s...\n", i+1, len(routes), routePath)
		result, err := s.Convert(ctx, routePath, tcxPath(outputDir, routePath))
		if err != nil {
			fmt.Printf("Error converting %s: %v\n", routePath, err)
			failed++
			continue
		}
		converted++
		fmt.Printf("Wrote %s (%d points, %d/%d heart rate)\n",
			result.OutputFile, result.PointCount, result.Stats.Matched, result.Stats.TrackPoints)
	}

	fmt.Printf("Converted %d, skipped %d, failed %d\n", converted, skipped, failed)
	return nil
}

func findRouteFiles(dir string) ([]string, error) {
	var routes []string
	for _, pattern := range []string{"*.gpx", "*.fit"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		routes = append(routes, matches...)
	}
	return routes, nil
}

// tcxPath places route.gpx at outputDir/route.tcx.
func tcxPath(outputDir, routePath string) string {
	base := filepath.Base(routePath)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".tcx"
	return filepath.Join(outputDir, name)
}
