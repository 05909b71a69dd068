package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"owacal/internal/config"
	"owacal/internal/export"
	appLog "owacal/internal/log"
	"owacal/internal/metrics"
)

// Server exposes the latest snapshot in every export format.
//
//	GET  /health          refresher status (never behind auth)
//	GET  /calendar.ics    iCalendar
//	GET  /events.json     JSON envelope
//	GET  /events.txt      plain text
//	POST /refresh         run a cycle now
//	GET  /metrics         Prometheus
type Server struct {
	cfg     *config.Config
	ref     *Refresher
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// NewServer constructs a new Server. m may be nil, which disables /metrics.
func NewServer(cfg *config.Config, ref *Refresher, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		ref:     ref,
		metrics: m,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="owacal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /calendar.ics", s.handleExport(export.FormatICal))
	s.mux.HandleFunc("GET /events.json", s.handleExport(export.FormatJSON))
	s.mux.HandleFunc("GET /events.txt", s.handleExport(export.FormatText))
	s.mux.HandleFunc("POST /refresh", s.handleRefresh)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// handleHealth is 200 once a snapshot exists and 503 before that.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.ref.Status()
	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func (s *Server) handleExport(f export.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.ref.Snapshot()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no calendar snapshot yet")
			return
		}

		body, err := export.Render(f, snap)
		if err != nil {
			appLog.Error("render failed", err, "format", f.String())
			writeError(w, http.StatusInternalServerError, "failed to render calendar")
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// handleRefresh runs a cycle synchronously, bounded by the request context.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.ref.Refresh(r.Context())
	switch {
	case errors.Is(err, ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, s.ref.Status())
	}
}

// ListenAndServe serves s on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
