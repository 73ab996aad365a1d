// Package server exposes an export session over HTTP: the current document,
// on-demand refreshes and a websocket bridge for host lifecycle events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Alia5/syncbackend/internal/exporter"
	"github.com/Alia5/syncbackend/internal/hook"
)

// Refresher is the export session the server drives.
type Refresher interface {
	Refresh(ctx context.Context) (*exporter.Result, error)
	Last() *exporter.Result
}

// RefreshSummary is the body of a successful POST /refresh.
type RefreshSummary struct {
	Path           string `json:"path"`
	Digest         string `json:"digest"`
	ArtifactDigest string `json:"artifactDigest"`
	Identities     int    `json:"identities"`
	Methods        int    `json:"methods"`
	SyncVars       int    `json:"syncVars"`
}

type Server struct {
	cfg      Config
	exp      Refresher
	hooks    *hook.Registry
	logger   *slog.Logger
	router   chi.Router
	upgrader websocket.Upgrader
}

func New(cfg Config, exp Refresher, hooks *hook.Registry, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		exp:    exp,
		hooks:  hooks,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/healthz", s.health)
	r.Get("/export", s.export)
	r.Post("/refresh", s.refresh)
	r.Get("/hooks", s.hookBridge)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, ErrNotFound(r.URL.Path))
	})
	s.router = r
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("HTTP listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP shutdown", "error", err)
		}
		s.logger.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	res := s.exp.Last()
	if res == nil {
		writeError(w, ErrNotFound("no document exported yet"))
		return
	}
	etag := `"` + res.Digest + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Artifact-Digest", res.ArtifactDigest)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(res.Data)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.exp.Refresh(r.Context())
	if err != nil {
		s.logger.Error("Refresh failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshSummary{
		Path:           res.Path,
		Digest:         res.Digest,
		ArtifactDigest: res.ArtifactDigest,
		Identities:     len(res.Document.NetworkIdentities),
		Methods:        len(res.Document.Methods),
		SyncVars:       len(res.Document.SyncVars),
	})
}
