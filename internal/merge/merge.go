package merge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/eemil100/tcx-converter/internal/models"
)

// Config controls how heart rate samples are matched onto the track and how
// cumulative distance is computed. Pass it explicitly so one process can
// convert several activities with different settings.
type Config struct {
	// Tolerance is the widest time difference allowed between a trackpoint
	// and its nearest heart rate sample. Matches beyond it are dropped
	// rather than assigning a stale reading. Zero means "use the default";
	// a negative value disables the guard and always takes the nearest
	// sample.
	Tolerance time.Duration

	// EarthRadiusMeters is the sphere radius used by the haversine
	// distance. Zero means "use the default" (mean Earth radius).
	EarthRadiusMeters float64
}

// DefaultConfig returns the recommended configuration. The 30 second
// tolerance covers the irregular sampling of watch-based heart rate exports
// without letting minutes-old readings leak into the output.
func DefaultConfig() Config {
	return Config{
		Tolerance:         30 * time.Second,
		EarthRadiusMeters: 6371000,
	}
}

// Stats reports what happened during alignment so callers can surface it to
// users.
type Stats struct {
	TrackPoints int
	Matched     int
	Unmatched   int

	// MaxMatchGap is the largest time difference accepted for any matched
	// point. Close to the tolerance usually means the two recordings did
	// not overlap well.
	MaxMatchGap time.Duration
}

// Align produces one MergedPoint per trackpoint, in track order, each
// carrying the heart rate sample closest in time. Samples may arrive
// unsorted; the track is expected to be time ordered but both inputs are
// sorted before matching. Heart rate is an enrichment: an empty sample list
// yields a fully merged track with no heart rate anywhere.
//
// When two samples are equally close to a trackpoint the earlier one wins,
// which keeps repeated runs byte-for-byte reproducible.
func Align(samples []models.HeartRateSample, track []models.TrackPoint, cfg Config) ([]models.MergedPoint, Stats, error) {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}

	stats := Stats{TrackPoints: len(track)}
	if len(track) == 0 {
		return []models.MergedPoint{}, stats, nil
	}

	for i, pt := range track {
		if pt.Time.IsZero() {
			return nil, stats, fmt.Errorf("track point %d has no timestamp", i)
		}
	}

	sortedTrack := make([]models.TrackPoint, len(track))
	copy(sortedTrack, track)
	sort.SliceStable(sortedTrack, func(i, j int) bool {
		return sortedTrack[i].Time.Before(sortedTrack[j].Time)
	})

	sortedSamples := make([]models.HeartRateSample, len(samples))
	copy(sortedSamples, samples)
	sort.SliceStable(sortedSamples, func(i, j int) bool {
		return sortedSamples[i].Time.Before(sortedSamples[j].Time)
	})

	merged := make([]models.MergedPoint, len(sortedTrack))
	cursor := 0

	for i, pt := range sortedTrack {
		merged[i] = models.MergedPoint{
			Time:      pt.Time,
			Lat:       pt.Lat,
			Lon:       pt.Lon,
			Elevation: pt.Elevation,
		}

		if len(sortedSamples) == 0 {
			stats.Unmatched++
			continue
		}

		// Both sequences are sorted, so the nearest sample index only moves
		// forward as trackpoint time increases. Strict less-than keeps the
		// earlier sample on a tie.
		for cursor+1 < len(sortedSamples) &&
			absDuration(sortedSamples[cursor+1].Time.Sub(pt.Time)) < absDuration(sortedSamples[cursor].Time.Sub(pt.Time)) {
			cursor++
		}

		gap := absDuration(sortedSamples[cursor].Time.Sub(pt.Time))
		if cfg.Tolerance >= 0 && gap > cfg.Tolerance {
			stats.Unmatched++
			continue
		}

		bpm := sortedSamples[cursor].BPM
		merged[i].HeartRate = &bpm
		stats.Matched++
		if gap > stats.MaxMatchGap {
			stats.MaxMatchGap = gap
		}
	}

	return merged, stats, nil
}

// AccumulateDistance fills DistanceMeters in place: point 0 starts at zero
// and every later point adds the great-circle distance from its predecessor.
// Elevation is ignored; this is a 2D ground-track distance.
//
// Coordinates are checked before anything is written, so a point outside the
// geographic envelope rejects the whole run instead of corrupting every
// distance after it.
func AccumulateDistance(points []models.MergedPoint, cfg Config) error {
	if cfg.EarthRadiusMeters == 0 {
		cfg.EarthRadiusMeters = DefaultConfig().EarthRadiusMeters
	}

	for i, pt := range points {
		// NaN compares false against every bound, so it needs its own check.
		if math.IsNaN(pt.Lat) || pt.Lat < -90 || pt.Lat > 90 {
			return fmt.Errorf("track point %d (%s): latitude %v out of range [-90,90]",
				i, pt.Time.Format(time.RFC3339), pt.Lat)
		}
		if math.IsNaN(pt.Lon) || pt.Lon < -180 || pt.Lon > 180 {
			return fmt.Errorf("track point %d (%s): longitude %v out of range [-180,180]",
				i, pt.Time.Format(time.RFC3339), pt.Lon)
		}
	}

	if len(points) == 0 {
		return nil
	}

	points[0].DistanceMeters = 0
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += haversineMeters(
			points[i-1].Lat, points[i-1].Lon,
			points[i].Lat, points[i].Lon,
			cfg.EarthRadiusMeters,
		)
		points[i].DistanceMeters = total
	}

	return nil
}

// haversineMeters is the great-circle distance between two coordinate pairs
// on a sphere of the given radius.
func haversineMeters(lat1, lon1, lat2, lon2, radius float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	// Rounding can push a just outside [0,1] for identical or antipodal
	// points, which would feed Sqrt a negative number.
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return radius * c
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
