package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eemil100/tcx-converter/internal/database"
)

func newTestHandler(t *testing.T) (*Handler, *database.Catalog) {
	t.Helper()
	catalog, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	h := NewHandler(catalog)
	if err := h.LoadTemplates("templates"); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	return h, catalog
}

func recordRows(t *testing.T, catalog *database.Catalog, n int) {
	t.Helper()
	base := time.Date(2023, 10, 14, 4, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		conv := &database.Conversion{
			RouteFile:       filepath.Join("in", fmt.Sprintf("route%d.gpx", i)),
			OutputFile:      filepath.Join("out", fmt.Sprintf("route%d.tcx", i)),
			ActivityStart:   base.Add(time.Duration(i) * time.Hour),
			ActivityType:    "HKWorkoutActivityTypeRunning",
			DurationSeconds: 1800,
			DistanceMeters:  5000,
			PointCount:      300,
			HRMatched:       290,
			HRTotal:         300,
		}
		if err := catalog.RecordConversion(conv); err != nil {
			t.Fatalf("RecordConversion: %v", err)
		}
	}
}

func TestIndex(t *testing.T) {
	h, catalog := newTestHandler(t)
	recordRows(t, catalog, 2)

	rec := httptest.NewRecorder()
	h.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Overview") {
		t.Error("body missing heading")
	}
	if !strings.Contains(body, "290/300") {
		t.Error("body missing heart rate counts")
	}
	if !strings.Contains(body, "5.00 km") {
		t.Error("body missing formatted distance")
	}
}

func TestIndexUnknownPath(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Index(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestConversionsPagination(t *testing.T) {
	h, catalog := newTestHandler(t)
	recordRows(t, catalog, pageSize+3)

	rec := httptest.NewRecorder()
	h.Conversions(rec, httptest.NewRequest(http.MethodGet, "/conversions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "older") {
		t.Error("first page missing next link")
	}
	if strings.Contains(rec.Body.String(), "newer") {
		t.Error("first page has a prev link")
	}

	rec = httptest.NewRecorder()
	h.Conversions(rec, httptest.NewRequest(http.MethodGet, "/conversions?page=2", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "newer") {
		t.Error("second page missing prev link")
	}
	if strings.Contains(body, "older") {
		t.Error("second page of 23 rows has a next link")
	}

	// Bad page parameter falls back to page 1.
	rec = httptest.NewRecorder()
	h.Conversions(rec, httptest.NewRequest(http.MethodGet, "/conversions?page=zero", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for bad page param", rec.Code)
	}
}

func TestConversionDetail(t *testing.T) {
	h, catalog := newTestHandler(t)
	recordRows(t, catalog, 1)

	rows, err := catalog.GetConversions(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	id := rows[0].ID

	rec := httptest.NewRecorder()
	h.Conversion(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/conversion?id=%d", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), rows[0].RouteFile) {
		t.Error("body missing route file")
	}

	rec = httptest.NewRecorder()
	h.Conversion(rec, httptest.NewRequest(http.MethodGet, "/conversion", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without id", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Conversion(rec, httptest.NewRequest(http.MethodGet, "/conversion?id=9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown id", rec.Code)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00"},
		{59, "0:00:59"},
		{1810, "0:30:10"},
		{3661, "1:01:01"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.seconds); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
