// Package health extracts heart rate samples and workout summaries from
// Apple Health XML exports.
package health

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/eemil100/tcx-converter/internal/models"
)

const heartRateRecordType = "HKQuantityTypeIdentifierHeartRate"

// Data holds everything extracted from one or more export files. Samples keep
// the order the files listed them in; callers that need time order sort for
// themselves.
type Data struct {
	Workouts []models.Workout
	Samples  []models.HeartRateSample
}

// healthTimeLayouts: Apple writes "2023-10-14 07:30:00 +0300"; older exports
// and third-party writers use RFC3339.
var healthTimeLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseHealthTime(s string) (time.Time, error) {
	for _, layout := range healthTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseDir parses every *.xml file in dir and merges the results into one
// Data. Export splitters produce several files per export; downstream code
// sees a single pre-merged sequence.
func ParseDir(dir string) (*Data, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no xml files found in %s", dir)
	}

	data := &Data{}
	for _, file := range files {
		fd, err := ParseFile(file)
		if err != nil {
			return nil, err
		}
		data.Workouts = append(data.Workouts, fd.Workouts...)
		data.Samples = append(data.Samples, fd.Samples...)
	}
	return data, nil
}

// ParseFile stream-decodes one export file. Full exports run to hundreds of
// megabytes, so the document is never held in memory; only heart rate Records
// and Workout elements are read, everything else is skipped.
func ParseFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open health export: %w", err)
	}
	defer f.Close()

	data, err := parseExport(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}

func parseExport(r io.Reader) (*Data, error) {
	dec := xml.NewDecoder(r)
	data := &Data{}
	records := 0
	workouts := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "HealthData":
			// Root element, descend.
		case "Record":
			records++
			if attrValue(se, "type") != heartRateRecordType {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			sample, err := parseHeartRateRecord(se)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", records, err)
			}
			data.Samples = append(data.Samples, sample)
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		case "Workout":
			workouts++
			workout, err := parseWorkout(se)
			if err != nil {
				return nil, fmt.Errorf("workout %d: %w", workouts, err)
			}
			data.Workouts = append(data.Workouts, workout)
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}

	return data, nil
}

func parseHeartRateRecord(se xml.StartElement) (models.HeartRateSample, error) {
	var sample models.HeartRateSample

	ts := attrValue(se, "startDate")
	if ts == "" {
		return sample, fmt.Errorf("heart rate record has no startDate")
	}
	t, err := parseHealthTime(ts)
	if err != nil {
		return sample, fmt.Errorf("startDate: %w", err)
	}

	raw := attrValue(se, "value")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sample, fmt.Errorf("heart rate value %q: %w", raw, err)
	}
	bpm := int(math.Round(v))
	if bpm <= 0 {
		return sample, fmt.Errorf("heart rate value %q is not a positive bpm", raw)
	}

	sample.Time = t
	sample.BPM = bpm
	return sample, nil
}

func parseWorkout(se xml.StartElement) (models.Workout, error) {
	var w models.Workout

	start, err := parseHealthTime(attrValue(se, "startDate"))
	if err != nil {
		return w, fmt.Errorf("startDate: %w", err)
	}
	end, err := parseHealthTime(attrValue(se, "endDate"))
	if err != nil {
		return w, fmt.Errorf("endDate: %w", err)
	}

	w.Start = start
	w.End = end
	w.ActivityType = attrValue(se, "workoutActivityType")

	dist, err := optionalFloat(se, "totalDistance")
	if err != nil {
		return w, err
	}
	w.TotalDistance = distanceToMeters(dist, attrValue(se, "totalDistanceUnit"))

	energy, err := optionalFloat(se, "totalEnergyBurned")
	if err != nil {
		return w, err
	}
	w.TotalEnergyBurned = energyToKcal(energy, attrValue(se, "totalEnergyBurnedUnit"))

	return w, nil
}

// distanceToMeters normalizes the export's distance unit. Apple writes km for
// metric locales and mi for imperial ones; an unknown unit passes through
// untouched rather than guessing.
func distanceToMeters(v float64, unit string) float64 {
	switch unit {
	case "km":
		return v * 1000
	case "mi":
		return v * 1609.344
	default:
		return v
	}
}

func energyToKcal(v float64, unit string) float64 {
	switch unit {
	case "kJ":
		return v / 4.184
	default:
		// kcal and Cal are the common spellings and both already kcal.
		return v
	}
}

func optionalFloat(se xml.StartElement, name string) (float64, error) {
	raw := attrValue(se, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, raw, err)
	}
	return v, nil
}

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// FindWorkout returns the first workout whose window contains t, or nil when
// no workout does. Export order decides ties between overlapping workouts.
func (d *Data) FindWorkout(t time.Time) *models.Workout {
	for i := range d.Workouts {
		if d.Workouts[i].Contains(t) {
			return &d.Workouts[i]
		}
	}
	return nil
}
