package parser

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/eemil100/tcx-converter/internal/models"
)

type gpxFile struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

// gpxPoint decodes lat/lon through pointers so an absent attribute stays nil
// instead of turning into coordinate 0, which is a real place.
type gpxPoint struct {
	Lat       *float64 `xml:"lat,attr"`
	Lon       *float64 `xml:"lon,attr"`
	Elevation *float64 `xml:"ele"`
	Time      string   `xml:"time"`
}

// gpxTimeLayouts covers the timestamp spellings seen in the wild; exporters
// disagree on fractional seconds and zone suffixes.
var gpxTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

func parseGPXTime(s string) (time.Time, error) {
	for _, layout := range gpxTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseGPX extracts every trackpoint from all tracks and segments, in
// document order. Trackpoints without a parseable timestamp fail the run:
// a route point that cannot be placed in time cannot be aligned or
// distance-annotated, and guessing would corrupt the output.
func parseGPX(data []byte) (*Route, error) {
	var doc gpxFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}

	route := &Route{}
	if len(doc.Tracks) > 0 {
		route.Name = doc.Tracks[0].Name
	}

	idx := 0
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, pt := range segment.Points {
				if pt.Lat == nil {
					return nil, fmt.Errorf("trackpoint %d: missing lat attribute", idx)
				}
				if pt.Lon == nil {
					return nil, fmt.Errorf("trackpoint %d: missing lon attribute", idx)
				}
				if pt.Time == "" {
					return nil, fmt.Errorf("trackpoint %d: missing timestamp", idx)
				}
				ts, err := parseGPXTime(pt.Time)
				if err != nil {
					return nil, fmt.Errorf("trackpoint %d: %w", idx, err)
				}
				route.Points = append(route.Points, models.TrackPoint{
					Time:      ts.UTC(),
					Lat:       *pt.Lat,
					Lon:       *pt.Lon,
					Elevation: pt.Elevation,
				})
				idx++
			}
		}
	}

	if len(route.Points) == 0 {
		return nil, ErrNoTrackData
	}
	if err := validatePoints(route.Points); err != nil {
		return nil, err
	}

	return route, nil
}
