package database

import (
	"time"
)

// Conversion is one catalog row: a route file that was merged with health
// data and written out as TCX.
type Conversion struct {
	ID              int       `json:"id"`
	RouteFile       string    `json:"route_file"`
	OutputFile      string    `json:"output_file"`
	ActivityStart   time.Time `json:"activity_start"`
	ActivityType    string    `json:"activity_type"`
	DurationSeconds float64   `json:"duration_seconds"`
	DistanceMeters  float64   `json:"distance_meters"`
	PointCount      int       `json:"point_count"`
	HRMatched       int       `json:"hr_matched"`
	HRTotal         int       `json:"hr_total"`
	CreatedAt       time.Time `json:"created_at"`
}

// HRCoverage is the share of trackpoints that got a heart rate match, for
// the status pages.
func (c Conversion) HRCoverage() float64 {
	if c.HRTotal == 0 {
		return 0
	}
	return float64(c.HRMatched) / float64(c.HRTotal) * 100
}

type Stats struct {
	Total               int     `json:"total"`
	WithHeartRate       int     `json:"with_heart_rate"`
	TotalDistanceMeters float64 `json:"total_distance_meters"`
}
