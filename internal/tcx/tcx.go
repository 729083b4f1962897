// Package tcx builds and writes Garmin TrainingCenterDatabase v2 documents.
package tcx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/eemil100/tcx-converter/internal/models"
)

const (
	tcxNamespace = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
)

type TrainingCenterDatabase struct {
	XMLName    xml.Name   `xml:"TrainingCenterDatabase"`
	Xmlns      string     `xml:"xmlns,attr"`
	XmlnsXsi   string     `xml:"xmlns:xsi,attr"`
	Activities Activities `xml:"Activities"`
}

type Activities struct {
	Activity []Activity `xml:"Activity"`
}

type Activity struct {
	Sport string `xml:"Sport,attr"`
	ID    string `xml:"Id"`
	Laps  []Lap  `xml:"Lap"`
	Notes string `xml:"Notes,omitempty"`
}

type Lap struct {
	StartTime        string  `xml:"StartTime,attr"`
	TotalTimeSeconds float64 `xml:"TotalTimeSeconds"`
	DistanceMeters   float64 `xml:"DistanceMeters"`
	Calories         int     `xml:"Calories"`
	Intensity        string  `xml:"Intensity"`
	TriggerMethod    string  `xml:"TriggerMethod"`
	Track            Track   `xml:"Track"`
}

type Track struct {
	Trackpoints []Trackpoint `xml:"Trackpoint"`
}

type Trackpoint struct {
	Time           string        `xml:"Time"`
	Position       Position      `xml:"Position"`
	AltitudeMeters float64       `xml:"AltitudeMeters"`
	DistanceMeters float64       `xml:"DistanceMeters"`
	HeartRateBpm   *HeartRateBpm `xml:"HeartRateBpm,omitempty"`
}

type Position struct {
	LatitudeDegrees  float64 `xml:"LatitudeDegrees"`
	LongitudeDegrees float64 `xml:"LongitudeDegrees"`
}

type HeartRateBpm struct {
	Value int `xml:"Value"`
}

// Build assembles the document from merged trackpoints. With a workout the
// lap summary comes from the health export; without one the lap is
// synthesized from the track itself, so a route with no matching workout
// still converts.
func Build(workout *models.Workout, routeName string, points []models.MergedPoint) (*TrainingCenterDatabase, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points to write")
	}

	lap := buildLap(workout, points)
	activity := Activity{
		Sport: sportForWorkout(workout),
		ID:    formatTime(startTime(workout, points)),
		Laps:  []Lap{lap},
		Notes: routeName,
	}

	return &TrainingCenterDatabase{
		Xmlns:      tcxNamespace,
		XmlnsXsi:   xsiNamespace,
		Activities: Activities{Activity: []Activity{activity}},
	}, nil
}

func buildLap(workout *models.Workout, points []models.MergedPoint) Lap {
	first := points[0]
	last := points[len(points)-1]
	computedDistance := last.DistanceMeters

	lap := Lap{
		StartTime:        formatTime(first.Time),
		TotalTimeSeconds: last.Time.Sub(first.Time).Seconds(),
		DistanceMeters:   computedDistance,
		Intensity:        "Active",
		TriggerMethod:    "Manual",
	}
	if workout != nil {
		lap.StartTime = formatTime(workout.Start)
		lap.TotalTimeSeconds = workout.End.Sub(workout.Start).Seconds()
		lap.Calories = int(workout.TotalEnergyBurned)
		if workout.TotalDistance > 0 {
			lap.DistanceMeters = workout.TotalDistance
		}
	}

	lap.Track.Trackpoints = make([]Trackpoint, 0, len(points))
	for _, pt := range points {
		tp := Trackpoint{
			Time: formatTime(pt.Time),
			Position: Position{
				LatitudeDegrees:  pt.Lat,
				LongitudeDegrees: pt.Lon,
			},
			DistanceMeters: pt.DistanceMeters,
		}
		if pt.Elevation != nil {
			tp.AltitudeMeters = *pt.Elevation
		}
		if pt.HeartRate != nil {
			tp.HeartRateBpm = &HeartRateBpm{Value: *pt.HeartRate}
		}
		lap.Track.Trackpoints = append(lap.Track.Trackpoints, tp)
	}

	return lap
}

func startTime(workout *models.Workout, points []models.MergedPoint) time.Time {
	if workout != nil {
		return workout.Start
	}
	return points[0].Time
}

// sportForWorkout maps the HK activity type onto the three sports the TCX
// schema allows.
func sportForWorkout(workout *models.Workout) string {
	if workout == nil {
		return "Other"
	}
	switch {
	case strings.Contains(workout.ActivityType, "Running"):
		return "Running"
	case strings.Contains(workout.ActivityType, "Cycling"):
		return "Biking"
	default:
		return "Other"
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Write writes the document to path.
func (db *TrainingCenterDatabase) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := db.WriteToWriter(f); err != nil {
		return err
	}
	return f.Close()
}

// WriteToWriter writes the document to w with an XML declaration and
// two-space indentation.
func (db *TrainingCenterDatabase) WriteToWriter(w io.Writer) error {
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(db); err != nil {
		return fmt.Errorf("encode tcx: %w", err)
	}

	_, err := w.Write([]byte("\n"))
	return err
}
