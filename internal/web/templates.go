package web

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"time"

	"github.com/eemil100/tcx-converter/internal/database"
)

// Handler serves the daemon's status pages from the conversion catalog.
type Handler struct {
	templates *template.Template
	catalog   *database.Catalog
}

func NewHandler(catalog *database.Catalog) *Handler {
	return &Handler{
		catalog: catalog,
	}
}

// LoadTemplates parses the layout and page templates under templatesDir.
// Pages define their own top-level template names and pull the shared
// header/footer in from the layouts.
func (h *Handler) LoadTemplates(templatesDir string) error {
	tmpl := template.New("base")
	tmpl = tmpl.Funcs(template.FuncMap{
		"km":       formatKm,
		"duration": formatDuration,
		"datetime": formatDatetime,
	})

	layouts, err := filepath.Glob(filepath.Join(templatesDir, "layouts/*.html"))
	if err != nil {
		return err
	}

	pages, err := filepath.Glob(filepath.Join(templatesDir, "pages/*.html"))
	if err != nil {
		return err
	}

	files := append(layouts, pages...)

	h.templates, err = tmpl.ParseFiles(files...)
	return err
}

func (h *Handler) renderTemplate(w io.Writer, name string, data interface{}) error {
	return h.templates.ExecuteTemplate(w, name, data)
}

func formatKm(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func formatDatetime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
