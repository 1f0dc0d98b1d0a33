package main

import (
	"context"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/httpd/pkg/config"
	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/transport"
	transportfast "github.com/rhuss/httpd/pkg/transport/fasthttp"
	transporthttp "github.com/rhuss/httpd/pkg/transport/http"
)

type serveFlags struct {
	port   int
	engine string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&f.engine, "engine", "", "transport engine: nethttp or fasthttp (overrides config)")
	return cmd
}

// apply copies flags the user set into cfg and validates the result again.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = f.port
	}
	if cmd.Flags().Changed("engine") {
		cfg.Server.Engine = f.engine
	}
	return cfg.Validate()
}

// serve runs the configured engine until ctx is done.
func serve(ctx context.Context, cfg *config.Config) error {
	logger := debug.Init(cfg.Observability.Debug, cfg.Observability.LogLevel)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	d := a.service.NewDispatcher()
	logger.Info("routes registered", "count", len(d.Routes()), "engine", cfg.Server.Engine)
	return newRunner(d, cfg, logger).Run(ctx)
}

// runner is implemented by both transport servers.
type runner interface {
	Run(ctx context.Context) error
}

func newRunner(d *transport.Dispatcher, cfg *config.Config, logger *slog.Logger) runner {
	addr := ":" + strconv.Itoa(cfg.Server.Port)
	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	if cfg.Server.Engine == config.EngineFastHTTP {
		return transportfast.NewServer(d, transportfast.ServerConfig{
			Addr:            addr,
			MaxBodySize:     int(cfg.Server.MaxBodySize),
			ReadTimeout:     cfg.Server.ReadTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Logger:          logger,
			MetricsPath:     metricsPath,
		})
	}
	return transporthttp.NewServer(d,
		transporthttp.WithAddr(addr),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize.Int64()),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithIdleTimeout(cfg.Server.IdleTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)
}
