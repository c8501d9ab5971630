package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/statusdeck/statusdeck/server/internal/audit"
	"github.com/statusdeck/statusdeck/server/internal/auth"
	"github.com/statusdeck/statusdeck/server/internal/config"
	"github.com/statusdeck/statusdeck/server/internal/upstream"
)

// Upstream is the part of *upstream.Client the handlers use.
type Upstream interface {
	Call(ctx context.Context, category upstream.Category, target upstream.Target) (*upstream.RawResponse, error)
	URL(category upstream.Category, target upstream.Target) string
	Configured(category upstream.Category) bool
	Scrub(text string) string
}

// Auditor records one line per proxied call.
type Auditor interface {
	Record(e audit.Entry)
}

// Observer receives request metrics. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveProxy(category string, code int)
	ObserveUpstream(category string, d time.Duration)
	Handler() http.Handler
}

// Deps are the collaborators of the HTTP surface. Metrics may be nil.
type Deps struct {
	Config   *config.Config
	Upstream Upstream
	Audit    Auditor
	Metrics  Observer
}

// Handler serves the proxy endpoints, /env.js and the static UI.
type Handler struct {
	cfg     *config.Config
	up      Upstream
	audit   Auditor
	metrics Observer
	router  chi.Router
}

// New creates a Handler and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{
		cfg:     d.Config,
		up:      d.Upstream,
		audit:   d.Audit,
		metrics: d.Metrics,
	}
	if h.audit == nil {
		h.audit = (*audit.Logger)(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware(h.cfg.Server.Auth, isHealthz))
	r.Use(blockSensitive(h.cfg.Server.StaticDir, h.cfg.Server.Audit.Path))

	r.Route("/proxy", func(r chi.Router) {
		r.With(h.instrument(upstream.Hypervisor)).Get("/hypervisor/node/{node}/status", h.nodeStatus)
		r.With(h.instrument(upstream.Hypervisor)).Get("/hypervisor/vm/{vmid}/online", h.vmOnline)
		r.With(h.instrument(upstream.Hypervisor)).Get("/hypervisor/root", h.hypervisorRoot)
		r.With(h.instrument(upstream.Containers)).Get("/containers", h.containers)
		r.With(h.instrument(upstream.Media)).Get("/media/now_playing", h.nowPlaying)
		r.With(h.instrument(upstream.Chat)).Post("/chat", h.chat)
	})

	r.Get("/env.js", h.envJS)
	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	if dir := h.cfg.Server.StaticDir; dir != "" {
		r.Handle("/*", staticHandler(dir))
	}

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func isHealthz(r *http.Request) bool { return r.URL.Path == "/healthz" }

// healthz returns GET /healthz. It never touches an upstream.
func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- upstream plumbing ------------------------------------------------------

// call performs one upstream request and audits it whatever the outcome.
func (h *Handler) call(r *http.Request, category upstream.Category, target upstream.Target) (*upstream.RawResponse, error) {
	start := time.Now()
	resp, err := h.up.Call(r.Context(), category, target)
	elapsed := time.Since(start)

	entry := audit.Entry{
		Route: r.URL.Path,
		URL:   h.up.URL(category, target),
		Err:   err,
	}
	if resp != nil {
		entry.Status = resp.Status
		entry.Body = resp.Body
	}
	h.audit.Record(entry)

	if h.metrics != nil && dialed(err) {
		h.metrics.ObserveUpstream(string(category), elapsed)
	}
	if err != nil {
		slog.Warn("proxy: upstream call failed",
			"category", string(category), "route", r.URL.Path, "err", h.up.Scrub(err.Error()))
		return nil, err
	}
	return resp, nil
}

// dialed reports whether a call reached the network, successful or not.
func dialed(err error) bool {
	return !errors.Is(err, upstream.ErrMissingCredential) &&
		!errors.Is(err, upstream.ErrNotConfigured) &&
		!errors.Is(err, upstream.ErrUnknownCategory)
}

// writeUpstreamError maps a Client.Call failure to its fixed response.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, category upstream.Category, err error) {
	switch {
	case errors.Is(err, upstream.ErrMissingCredential):
		jsonErr(w, http.StatusServiceUnavailable, string(category)+" access key not configured")
	case errors.Is(err, upstream.ErrNotConfigured):
		jsonErr(w, http.StatusServiceUnavailable, string(category)+" upstream not configured")
	case errors.Is(err, upstream.ErrTimeout):
		jsonErr(w, http.StatusGatewayTimeout, "upstream timed out")
	default:
		cause := err
		var ue *upstream.UpstreamError
		if errors.As(err, &ue) {
			cause = ue.Cause
		}
		jsonErr(w, http.StatusInternalServerError, "upstream request failed: "+h.up.Scrub(cause.Error()))
	}
}

// passthrough relays an upstream answer with any credential it echoes
// replaced by a placeholder.
func (h *Handler) passthrough(w http.ResponseWriter, resp *upstream.RawResponse) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(h.up.Scrub(resp.Body)))
}

// proxyRaw is the whole handler for categories that pass through.
func (h *Handler) proxyRaw(w http.ResponseWriter, r *http.Request, category upstream.Category, target upstream.Target) {
	resp, err := h.call(r, category, target)
	if err != nil {
		h.writeUpstreamError(w, category, err)
		return
	}
	h.passthrough(w, resp)
}

// instrument counts every response served for category.
func (h *Handler) instrument(category upstream.Category) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			h.metrics.ObserveProxy(string(category), status)
		})
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
