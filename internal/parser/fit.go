package parser

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tormoder/fit"

	"github.com/eemil100/tcx-converter/internal/models"
)

const fitInvalidAltitude = 0xFFFF

// parseFIT extracts route trackpoints from a FIT activity file. Records
// without a GPS fix (tunnels, indoor stretches) are skipped rather than
// treated as errors; altitude carries FIT's scale and offset.
func parseFIT(data []byte) (*Route, error) {
	fitFile, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}

	activity, err := fitFile.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit file is not an activity: %w", err)
	}

	route := &Route{}
	for _, record := range activity.Records {
		lat := record.PositionLat.Degrees()
		lon := record.PositionLong.Degrees()
		if math.IsNaN(lat) || math.IsNaN(lon) {
			continue
		}
		if record.Timestamp.IsZero() {
			return nil, fmt.Errorf("trackpoint %d: missing timestamp", len(route.Points))
		}

		pt := models.TrackPoint{
			Time: record.Timestamp.UTC(),
			Lat:  lat,
			Lon:  lon,
		}
		if record.Altitude != fitInvalidAltitude {
			elev := float64(record.Altitude)/5.0 - 500.0
			pt.Elevation = &elev
		}
		route.Points = append(route.Points, pt)
	}

	if len(route.Points) == 0 {
		return nil, ErrNoTrackData
	}
	if err := validatePoints(route.Points); err != nil {
		return nil, err
	}

	return route, nil
}
