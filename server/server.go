// Package server exposes previews over HTTP: a one-shot preview endpoint,
// the preference toggle, the recent outcome log and the MCP tools.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/instantpreview/idgen"
	"github.com/hazyhaar/instantpreview/prefs"
	"github.com/hazyhaar/instantpreview/preview"
	"github.com/hazyhaar/instantpreview/render"
	"github.com/hazyhaar/instantpreview/store"
)

// Deps are the server's collaborators. Prefs, Store and MCP are optional.
type Deps struct {
	Pipeline *preview.Pipeline
	Renderer *render.Renderer
	Prefs    *prefs.Store
	Store    *store.Store
	Reporter preview.Reporter
	MCP      *mcp.Server
	Logger   *slog.Logger
	IDs      idgen.Generator
}

type server struct {
	Deps
}

// New builds the router.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.IDs == nil {
		d.IDs = idgen.Prefixed("req_", idgen.Default)
	}
	if d.Renderer == nil {
		d.Renderer = render.New()
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(securityHeaders)
	r.Use(requestID(d.IDs, d.Logger))
	r.Use(maxBody(64 << 10))
	r.Use(headToGet)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/preview", s.handlePreview)
		if d.Prefs != nil {
			r.Get("/preference", s.handleGetPreference)
			r.Put("/preference", s.handlePutPreference)
		}
		if d.Store != nil {
			r.Get("/outcomes", s.handleOutcomes)
		}
	})

	if d.MCP != nil {
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return d.MCP }, nil))
	}
	return r
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || !u.IsAbs() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("url must be an absolute URL"))
		return
	}

	start := time.Now()
	res, err := s.Pipeline.Run(r.Context(), u)
	if s.Reporter != nil {
		rep := preview.Report{
			URL: u.String(), Anchor: u.Fragment,
			Outcome: preview.Classify(err), Err: err, Duration: time.Since(start),
		}
		if res != nil {
			rep.URL = res.URL.String()
		}
		s.Reporter.Report(r.Context(), rep)
	}
	if err != nil {
		getLogger(r.Context()).Debug("server: preview failed", "url", raw, "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	out, err := preview.Present(res, s.Renderer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, preview.ErrNotInSitemap), errors.Is(err, preview.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, preview.ErrEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, preview.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type preferenceBody struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value"`
}

func (s *server) preference() preferenceBody {
	if s.Prefs.Get() {
		return preferenceBody{Enabled: true, Value: "on"}
	}
	return preferenceBody{Enabled: false, Value: "off"}
}

func (s *server) handleGetPreference(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.preference())
}

func (s *server) handlePutPreference(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if body.Value != "on" && body.Value != "off" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("value must be on or off"))
		return
	}
	if err := s.Prefs.Toggle(r.Context(), body.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.preference())
}

func (s *server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 500 {
		limit = 500
	}
	entries, err := s.Store.Recent(r.Context(), limit, r.URL.Query().Get("outcome"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	counts, err := s.Store.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "counts": counts})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
