package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eemil100/tcx-converter/internal/models"
)

// Route is the ordered trackpoint sequence extracted from one route file.
// Its point count and timing define the activity.
type Route struct {
	Name   string
	Points []models.TrackPoint
}

// ErrNoTrackData means the file parsed cleanly but contained no trackpoints.
var ErrNoTrackData = errors.New("no track points found")

// Parse reads a route file and extracts its trackpoints. The format is
// picked by extension first, then by content sniffing, so a mislabelled
// file still parses.
func Parse(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}

	var route *Route
	switch filepath.Ext(path) {
	case ".gpx":
		route, err = parseGPX(data)
	case ".fit":
		route, err = parseFIT(data)
	default:
		route, err = ParseData(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return route, nil
}

// ParseData extracts trackpoints from in-memory route data, detecting the
// format from the content alone.
func ParseData(data []byte) (*Route, error) {
	switch DetectFileTypeFromData(data) {
	case FileTypeGPX:
		return parseGPX(data)
	case FileTypeFIT:
		return parseFIT(data)
	case FileTypeTCX:
		return nil, fmt.Errorf("tcx is this tool's output format, not a supported route input")
	default:
		return nil, fmt.Errorf("unsupported route file format")
	}
}

// validatePoints rejects coordinates outside the geographic envelope at the
// extraction boundary, before anything downstream can accumulate distance
// from them.
func validatePoints(points []models.TrackPoint) error {
	for i, pt := range points {
		if err := pt.Validate(); err != nil {
			return fmt.Errorf("trackpoint %d: %w", i, err)
		}
	}
	return nil
}
