package web

import (
	"log"
	"net/http"
	"strconv"

	"github.com/eemil100/tcx-converter/internal/database"
)

const pageSize = 20

type indexData struct {
	Stats  *database.Stats
	Recent []database.Conversion
}

// Index shows catalog totals and the most recent conversions.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := h.catalog.GetStats()
	if err != nil {
		serverError(w, "load stats", err)
		return
	}
	recent, err := h.catalog.GetConversions(10, 0)
	if err != nil {
		serverError(w, "load conversions", err)
		return
	}

	if err := h.renderTemplate(w, "index", indexData{Stats: stats, Recent: recent}); err != nil {
		serverError(w, "render index", err)
	}
}

type conversionsData struct {
	Conversions []database.Conversion
	Page        int
	PrevPage    int
	NextPage    int
	HasPrev     bool
	HasNext     bool
}

// Conversions lists the catalog a page at a time, newest activity first.
func (h *Handler) Conversions(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	// Fetch one row past the page to know whether a next page exists.
	rows, err := h.catalog.GetConversions(pageSize+1, (page-1)*pageSize)
	if err != nil {
		serverError(w, "load conversions", err)
		return
	}

	data := conversionsData{
		Page:     page,
		PrevPage: page - 1,
		NextPage: page + 1,
		HasPrev:  page > 1,
		HasNext:  len(rows) > pageSize,
	}
	if data.HasNext {
		rows = rows[:pageSize]
	}
	data.Conversions = rows

	if err := h.renderTemplate(w, "conversions", data); err != nil {
		serverError(w, "render conversions", err)
	}
}

type conversionData struct {
	Conversion *database.Conversion
}

// Conversion shows one catalog row in full.
func (h *Handler) Conversion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || id < 1 {
		http.Error(w, "missing or invalid id", http.StatusBadRequest)
		return
	}

	conv, err := h.catalog.GetConversion(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.renderTemplate(w, "conversion", conversionData{Conversion: conv}); err != nil {
		serverError(w, "render conversion", err)
	}
}

func serverError(w http.ResponseWriter, what string, err error) {
	log.Printf("web: %s: %v", what, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
