// Package server is the HTTP transient explorer: a slider page over the
// reactivity step plus JSON and SVG endpoints backed by an Experiment.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/logging"
	"github.com/san-kum/recore/internal/observability"
)

// SolveTimeout bounds a single request's solve.
const SolveTimeout = 30 * time.Second

type Server struct {
	exp       *experiment.Experiment
	collector *observability.Collector
	log       *slog.Logger
}

type Option func(*Server)

func WithCollector(c *observability.Collector) Option {
	return func(s *Server) { s.collector = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

func New(exp *experiment.Experiment, opts ...Option) *Server {
	s := &Server{exp: exp}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	return s
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.collector.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/transient", s.handleTransient)
		r.Get("/transient.svg", s.handleTransientSVG)
		r.Get("/presets", s.handlePresets)
		r.Get("/constants", s.handleConstants)
	})

	return r
}

// instrument logs each request and counts it by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.collector.ObserveHTTP(route, status)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("transient explorer listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down transient explorer")
		return srv.Shutdown(shutdownCtx)
	}
}
