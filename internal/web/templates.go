package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/digestwatch/digestwatch/internal/config"
	"github.com/digestwatch/digestwatch/internal/digest"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"rfc3339": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"date":    func(t time.Time) string { return t.UTC().Format("2006-01-02") },
}).ParseFS(templateFS, "templates/*.tmpl"))

// indexData feeds index.html.tmpl.
type indexData struct {
	Digests     []config.Digest
	RateLimit   digest.RateLimit
	HasLimit    bool
	GeneratedAt time.Time
}

// digestData feeds digest.html.tmpl.
type digestData struct {
	View  digest.View
	Since time.Time
	Now   time.Time
}

// render executes the named template into a buffer first so a template
// error can still produce a clean 500 instead of a torn page.
func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("web: render failed", "template", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w) //nolint:errcheck
}
