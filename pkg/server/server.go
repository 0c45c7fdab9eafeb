// Package server exposes health, readiness and Prometheus metrics over HTTP
// while a training run is in progress.
//
//	s := server.New(server.WithName("hfjob"), server.WithAddress(":8080"))
//	ln, err := s.Listen(ctx)
//	if err != nil {
//	    return err
//	}
//	go s.Serve(ctx, ln)
//	s.SetReady(true)
//
// Routes:
//
//	GET /         server name, version and readiness
//	GET /health   liveness, always healthy while the process serves
//	GET /ready    503 until SetReady(true)
//	GET /metrics  Prometheus text exposition of the default registry
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yngpu/hfjob/pkg/errors"
)

// Server is the status HTTP server.
type Server struct {
	cfg     *Config
	name    string
	version string
	address string

	limiter *rate.Limiter

	mu    sync.RWMutex
	ready bool
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the name reported on the default route.
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the version reported on the default route.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithConfig replaces the default configuration. A nil cfg is ignored.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithAddress sets the listen address, overriding Config.Address regardless
// of option order.
func WithAddress(addr string) Option {
	return func(s *Server) {
		s.address = addr
	}
}

// New returns a server that is not yet ready.
func New(opts ...Option) *Server {
	s := &Server{
		cfg:     DefaultConfig(),
		name:    "hfjob",
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.address != "" {
		cfg := *s.cfg
		cfg.Address = s.address
		s.cfg = &cfg
	}
	s.limiter = rate.NewLimiter(s.cfg.RateLimit, s.cfg.RateLimitBurst)
	return s
}

// SetReady sets the readiness reported on /ready.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Listen binds the configured address.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.addr())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable,
			fmt.Sprintf("failed to listen on %s", s.cfg.addr()), err)
	}
	return ln, nil
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("status server listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		slog.Debug("shutting down status server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
