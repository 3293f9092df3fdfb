package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monalisastar/elr-protocol-mainnet/core"
)

const (
	maxBodyBytes      = 64 << 10
	defaultEventLimit = 100
)

// Config wires the HTTP surface.
type Config struct {
	ListenAddress string
	RateLimit     RateLimit
	// ServiceName names the tracer used for request spans.
	ServiceName string
	Logger      *slog.Logger
	// Metrics overrides the /metrics handler. Defaults to the process-wide
	// prometheus registry.
	Metrics http.Handler
}

// Server exposes the protocol node over HTTP.
type Server struct {
	node    *core.Node
	cfg     Config
	logger  *slog.Logger
	limiter *rateLimiter
	router  chi.Router
	srv     *http.Server
}

// NewServer builds the router for node.
func NewServer(node *core.Node, cfg Config) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "elrd"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "rpc"),
		limiter: newRateLimiter(cfg.RateLimit),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(observe(s.logger, s.cfg.ServiceName))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.cfg.Metrics)
	r.Get("/pool", s.handlePool)
	r.Get("/accounts/{addr}", s.handleAccount)
	r.Get("/events", s.handleEvents)

	r.Route("/merchants/{addr}", func(sr chi.Router) {
		sr.Get("/", s.handleMerchant)
		sr.With(s.limiter.middleware("merchants.approve")).Post("/approve", s.handleApprove)
		sr.With(s.limiter.middleware("merchants.blacklist")).Post("/blacklist", s.handleBlacklist)
	})
	r.With(s.limiter.middleware("allocations")).Post("/allocations", s.handleAllocation)
	return r
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc listening", "addr", listener.Addr().String())
		errCh <- s.srv.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
