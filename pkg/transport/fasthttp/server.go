package fasthttp

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/rhuss/httpd/pkg/observability"
	"github.com/rhuss/httpd/pkg/transport"
)

// ServerConfig holds configuration for the fasthttp server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger

	// MetricsPath serves Prometheus metrics outside the pipeline. Empty
	// disables it.
	MetricsPath string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ReadTimeout:     10 * time.Second,
		IdleTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
		MetricsPath:     "/metrics",
	}
}

// Server runs a Dispatcher on fasthttp.
type Server struct {
	srv        *fasthttp.Server
	dispatcher *transport.Dispatcher
	config     ServerConfig
	logger     *slog.Logger
}

// NewServer creates a fasthttp server for d.
func NewServer(d *transport.Dispatcher, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	handler := NewAdapter(d).Handler()
	if cfg.MetricsPath != "" {
		handler = withMetrics(cfg.MetricsPath, handler)
	}
	return &Server{
		srv: &fasthttp.Server{
			Handler:            handler,
			Name:               "httpd",
			MaxRequestBodySize: cfg.MaxBodySize,
			ReadTimeout:        cfg.ReadTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			// Deferred exchanges may take arbitrarily long.
			WriteTimeout: 0,
		},
		dispatcher: d,
		config:     cfg,
		logger:     cfg.Logger,
	}
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.ServeOn(ctx, ln)
}

// ServeOn serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()), slog.String("engine", "fasthttp"))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown drains deferred exchanges, aborting those still pending when
// ctx is done, and waits for the listener to close.
func (s *Server) Shutdown(ctx context.Context) error {
	dispatchErr := make(chan error, 1)
	go func() { dispatchErr <- s.dispatcher.Shutdown(ctx) }()

	srvErr := make(chan error, 1)
	go func() { srvErr <- s.srv.Shutdown() }()

	err := <-dispatchErr
	select {
	case serr := <-srvErr:
		if err == nil {
			err = serr
		}
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	if err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// withMetrics answers GET requests on path with the Prometheus handler and
// passes everything else to next.
func withMetrics(path string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	metrics := fasthttpadaptor.NewFastHTTPHandler(observability.Handler())
	return func(rctx *fasthttp.RequestCtx) {
		if rctx.IsGet() && string(rctx.Path()) == path {
			metrics(rctx)
			return
		}
		next(rctx)
	}
}
