package database

import (
	"database/sql"
	"fmt"
)

const timeFormat = "2006-01-02 15:04:05"

// Catalog records finished conversions in SQLite. Watch mode uses it to skip
// route files that were already converted; the status pages read it back.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at dbPath. The sqlite3 driver
// must be registered by the importing binary.
func Open(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	c := &Catalog{db: db}
	if err := c.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Catalog) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_file TEXT UNIQUE NOT NULL,
		output_file TEXT NOT NULL,
		activity_start DATETIME NOT NULL,
		activity_type TEXT,
		duration_seconds REAL,
		distance_meters REAL,
		point_count INTEGER,
		hr_matched INTEGER,
		hr_total INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_route_file ON conversions(route_file);
	CREATE INDEX IF NOT EXISTS idx_conversions_activity_start ON conversions(activity_start);
	`

	_, err := c.db.Exec(schema)
	return err
}

// RecordConversion inserts the row, replacing any earlier conversion of the
// same route file. Re-converting a file is a refresh, not an error.
func (c *Catalog) RecordConversion(conv *Conversion) error {
	query := `
	INSERT INTO conversions (
		route_file, output_file, activity_start, activity_type,
		duration_seconds, distance_meters, point_count, hr_matched, hr_total
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(route_file) DO UPDATE SET
		output_file = excluded.output_file,
		activity_start = excluded.activity_start,
		activity_type = excluded.activity_type,
		duration_seconds = excluded.duration_seconds,
		distance_meters = excluded.distance_meters,
		point_count = excluded.point_count,
		hr_matched = excluded.hr_matched,
		hr_total = excluded.hr_total,
		created_at = CURRENT_TIMESTAMP`

	_, err := c.db.Exec(query,
		conv.RouteFile, conv.OutputFile,
		conv.ActivityStart.UTC().Format(timeFormat), conv.ActivityType,
		conv.DurationSeconds, conv.DistanceMeters,
		conv.PointCount, conv.HRMatched, conv.HRTotal,
	)

	return err
}

// ConversionExists reports whether routeFile was already converted.
func (c *Catalog) ConversionExists(routeFile string) (bool, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM conversions WHERE route_file = ?`, routeFile).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const conversionColumns = `
	id, route_file, output_file, activity_start, activity_type,
	duration_seconds, distance_meters, point_count, hr_matched, hr_total,
	created_at`

func (c *Catalog) GetConversions(limit, offset int) ([]Conversion, error) {
	query := `SELECT` + conversionColumns + `
	FROM conversions
	ORDER BY activity_start DESC
	LIMIT ? OFFSET ?`

	rows, err := c.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversions []Conversion
	for rows.Next() {
		conv, err := scanConversion(rows.Scan)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, *conv)
	}

	return conversions, rows.Err()
}

func (c *Catalog) GetConversion(id int) (*Conversion, error) {
	query := `SELECT` + conversionColumns + `
	FROM conversions
	WHERE id = ?`

	row := c.db.QueryRow(query, id)
	conv, err := scanConversion(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversion %d not found", id)
	}
	return conv, err
}

// scanConversion reads one row. The sqlite3 driver hands DATETIME columns
// back as time.Time already, so the timestamps scan directly.
func scanConversion(scan func(...interface{}) error) (*Conversion, error) {
	var conv Conversion

	err := scan(
		&conv.ID, &conv.RouteFile, &conv.OutputFile, &conv.ActivityStart,
		&conv.ActivityType, &conv.DurationSeconds, &conv.DistanceMeters,
		&conv.PointCount, &conv.HRMatched, &conv.HRTotal, &conv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

func (c *Catalog) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := c.db.QueryRow(`SELECT COUNT(*) FROM conversions`).Scan(&stats.Total)
	if err != nil {
		return nil, err
	}

	err = c.db.QueryRow(`SELECT COUNT(*) FROM conversions WHERE hr_matched > 0`).Scan(&stats.WithHeartRate)
	if err != nil {
		return nil, err
	}

	err = c.db.QueryRow(`SELECT COALESCE(SUM(distance_meters), 0) FROM conversions`).Scan(&stats.TotalDistanceMeters)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
