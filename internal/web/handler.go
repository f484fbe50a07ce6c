package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/digestwatch/digestwatch/internal/config"
	"github.com/digestwatch/digestwatch/internal/digest"
	"github.com/digestwatch/digestwatch/internal/store"
)

// Source is the slice of the registry the web layer reads from.
type Source interface {
	Get(ctx context.Context, key string, since time.Time) (digest.View, error)
	Digests() []config.Digest
	Lookback(key string) (time.Duration, error)
}

// Handler serves the HTML pages and the liveness endpoint.
type Handler struct {
	source    Source
	rateLimit func() (digest.RateLimit, bool)
	mux       *http.ServeMux
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Handler reading digests from source. rateLimit reports the
// last observed upstream quota for the index page; it may be nil.
func New(source Source, rateLimit func() (digest.RateLimit, bool)) *Handler {
	if rateLimit == nil {
		rateLimit = func() (digest.RateLimit, bool) { return digest.RateLimit{}, false }
	}
	h := &Handler{
		source:    source,
		rateLimit: rateLimit,
		mux:       http.NewServeMux(),
		now:       time.Now,
	}

	h.mux.HandleFunc("/", h.index)
	h.mux.HandleFunc("/d/", h.digest) // subtree — extracts {filename}
	h.mux.HandleFunc("/healthz", h.healthz)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// index serves GET / — the list of configured digests with default links.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rl, rlOK := h.rateLimit()
	data := indexData{
		Digests:     h.source.Digests(),
		RateLimit:   rl,
		HasLimit:    rlOK,
		GeneratedAt: h.now().UTC(),
	}
	h.render(w, "index.html.tmpl", data)
}

// digest serves GET /d/{filename} — one digest page.
func (h *Handler) digest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/d/")
	if filename == "" {
		http.NotFound(w, r)
		return
	}

	lookback, err := h.source.Lookback(filename)
	if errors.Is(err, store.ErrUnknownKey) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("web: lookback lookup failed", "digest", filename, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The ?since= window is validated before any cache state is touched.
	if q := r.URL.Query().Get("since"); q != "" {
		lookback, err = digest.ParseLookback(q)
		if err != nil {
			http.Error(w, "invalid since: "+q, http.StatusBadRequest)
			return
		}
	}
	since := digest.UTCToday(h.now()).Add(-lookback)

	view, err := h.source.Get(r.Context(), filename, since)
	if errors.Is(err, store.ErrUnknownKey) {
		// Removed by a concurrent config reload.
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("web: digest read failed", "digest", filename, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.render(w, "digest.html.tmpl", digestData{
		View:  view,
		Since: since,
		Now:   h.now().UTC(),
	})
}

// healthz serves GET /healthz — a JSON liveness payload.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"status":  "ok",
		"digests": len(h.source.Digests()),
	})
}
