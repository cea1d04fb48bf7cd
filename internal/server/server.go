// Package server exposes the analyzer and use-case generator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/walletcase/internal/report"
	"github.com/KaramelBytes/walletcase/internal/usecase"
)

// Generator is the slice of usecase.Generator the handlers need.
type Generator interface {
	Generate(ctx context.Context, data []byte, bc usecase.BusinessContext) (*usecase.Outcome, error)
}

// Config holds configuration for the HTTP server.
type Config struct {
	Generator      Generator
	Store          *report.Store // nil disables run history
	Provider       string
	Port           int
	AllowedOrigins []string
	MaxUploadMB    int
	Env            string
	Logger         *slog.Logger
}

// Server serves the upload API.
type Server struct {
	gen       Generator
	store     *report.Store
	provider  string
	port      int
	origins   []string
	maxUpload int64
	env       string
	logger    *slog.Logger
}

// New creates a server instance.
func New(cfg Config) *Server {
	s := &Server{
		gen:       cfg.Generator,
		store:     cfg.Store,
		provider:  cfg.Provider,
		port:      cfg.Port,
		origins:   cfg.AllowedOrigins,
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		env:       cfg.Env,
		logger:    cfg.Logger,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 10 << 20
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if s.env == "" {
		s.env = "development"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler builds the router with middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/upload", s.handleUpload)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", "http://"+ln.Addr().String(), "env", s.env)

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
