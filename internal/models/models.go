package models

import (
	"fmt"
	"math"
	"time"
)

// HeartRateSample is a single point-in-time heart rate reading taken from a
// health export. Samples arrive in whatever order the export files list them;
// callers must not assume they are sorted.
type HeartRateSample struct {
	Time time.Time
	BPM  int
}

// TrackPoint is one geolocated point from a route file. The route's point
// order and count define the activity: every output trackpoint corresponds to
// exactly one TrackPoint.
type TrackPoint struct {
	Time      time.Time
	Lat       float64
	Lon       float64
	Elevation *float64 // meters; nil when the source point carries no elevation
}

// Validate reports whether the point is usable for distance math. A point
// outside the geographic envelope would corrupt every cumulative distance
// after it, so it rejects the whole run.
func (p TrackPoint) Validate() error {
	if p.Time.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	// NaN compares false against every bound, so it needs its own check.
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", p.Lon)
	}
	return nil
}

// MergedPoint is a trackpoint enriched with the best-matching heart rate
// sample and the cumulative distance travelled up to and including it.
// HeartRate stays nil when no sample fell within the matching tolerance,
// which is different from a genuine low reading.
type MergedPoint struct {
	Time           time.Time
	Lat            float64
	Lon            float64
	Elevation      *float64
	HeartRate      *int
	DistanceMeters float64
}

// Workout is a summary entry from a health export. Start/End bracket the
// recorded session; the remaining fields feed the output document's lap
// summary.
type Workout struct {
	Start             time.Time
	End               time.Time
	ActivityType      string
	TotalDistance     float64 // meters
	TotalEnergyBurned float64 // kcal
}

// Contains reports whether t falls inside the workout window, bounds
// included.
func (w Workout) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
