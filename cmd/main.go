// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main runs the mircd server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/absmach/mircd"
	"github.com/absmach/mircd/examples/simple"
	"github.com/absmach/mircd/pkg/health"
	"github.com/absmach/mircd/pkg/metrics"
	"github.com/absmach/mircd/pkg/ratelimit"
	"github.com/absmach/mircd/pkg/registry"
	"github.com/absmach/mircd/pkg/server/tcp"
	"github.com/absmach/mircd/pkg/server/websocket"
	"github.com/absmach/mircd/pkg/session"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const envPrefix = "MIRCD_"

type flags struct {
	port        string
	operPasswd  string
	serverName  string
	networkFile string
	verbosity   int
	quiet       bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "mircd -o OPER_PASSWD [-p PORT] [-s SERVERNAME] [-n NETWORK_FILE] [(-q|-v|-vv)]",
		Short:        "mircd is a small IRC server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger := setupLogger(out, logLevel(cfg.LogLevel, f.verbosity, f.quiet), cfg.LogFormat)
			return run(cmd.Context(), cfg, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.port, "port", "p", "", "TCP port to listen on (default "+mircd.DefaultPort+")")
	fs.StringVarP(&f.operPasswd, "oper-password", "o", "", "operator password (required)")
	fs.StringVarP(&f.serverName, "server-name", "s", "", "name of this server")
	fs.StringVarP(&f.networkFile, "network", "n", "", "network file listing the servers of the network")
	fs.CountVarP(&f.verbosity, "verbose", "v", "increase verbosity (-v debug, -vv trace)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

// loadEnv reads .env files into the environment. A missing file is normal.
func loadEnv(logger *slog.Logger, files ...string) {
	err := godotenv.Load(files...)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("no .env file found, using environment variables")
	default:
		logger.Warn("failed to load .env file", slog.String("error", err.Error()))
	}
}

// loadConfig reads .env and the environment, then lets flags override them.
func loadConfig(cmd *cobra.Command, f flags) (mircd.Config, error) {
	loadEnv(slog.Default())

	cfg, err := mircd.NewConfig(env.Options{Prefix: envPrefix})
	if err != nil {
		return mircd.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("oper-password") {
		cfg.OperatorPassword = f.operPasswd
	}
	if fs.Changed("server-name") {
		cfg.ServerName = f.serverName
	}
	if fs.Changed("network") {
		cfg.NetworkFile = f.networkFile
	}

	if err := cfg.Validate(); err != nil {
		return mircd.Config{}, err
	}

	if cfg.NetworkFile != "" {
		network, err := mircd.LoadNetwork(cfg.NetworkFile)
		if err != nil {
			return mircd.Config{}, err
		}
		if err := cfg.ApplyNetwork(network); err != nil {
			return mircd.Config{}, err
		}
	}

	if cfg.ServerName == "" {
		if cfg.ServerName, err = os.Hostname(); err != nil {
			cfg.ServerName = "localhost"
		}
	}
	if cfg.CreatedDate == "" {
		cfg.CreatedDate = time.Now().UTC().Format(time.RFC1123)
	}
	return cfg, nil
}

// logLevel maps -q and -v counts onto slog levels. Without flags the
// configured level is used.
func logLevel(configured string, verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelError
	case verbosity == 1:
		return slog.LevelDebug
	case verbosity >= 2:
		return session.LevelTrace
	}

	switch strings.ToLower(configured) {
	case "trace":
		return session.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger creates a structured logger with the specified level and format.
func setupLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func run(ctx context.Context, cfg mircd.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	logger.Info("starting mircd",
		slog.String("server", cfg.ServerName),
		slog.String("version", cfg.Version),
		slog.String("address", cfg.Address()),
		slog.Int("max_connections", cfg.MaxConnections))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New("mircd", reg)

	dir := registry.New()
	m.WatchIdentities(dir.Len)

	checker := newChecker(cfg, dir.Len)

	perIP := ratelimit.NewLimiter(cfg.ConnectRateCapacity, cfg.ConnectRateRefill, cfg.MaxConnections, 0)
	defer perIP.Close()
	flood := ratelimit.NewLimiter(cfg.FloodCapacity, cfg.FloodRefill, cfg.MaxConnections, 0)
	defer flood.Close()

	h := &InstrumentedHandler{
		handler: &RateLimitedHandler{
			handler:       simple.New(logger),
			perIPLimiter:  perIP,
			globalLimiter: ratelimit.NewTokenBucket(cfg.GlobalRateCapacity, cfg.GlobalRateRefill),
			floodLimiter:  flood,
			metrics:       m,
			logger:        logger,
		},
		metrics: m,
	}

	svc := &observedService{
		service: session.NewService(session.Config{
			ServerName:       cfg.ServerName,
			Version:          cfg.Version,
			CreatedDate:      cfg.CreatedDate,
			OperatorPassword: cfg.OperatorPassword,
			Host:             cfg.ClientHost,
			MaxLineLength:    cfg.MaxLineLength,
			MaxNickLength:    cfg.MaxNickLength,
			BufferSize:       cfg.BufferSize,
			ReadTimeout:      cfg.ReadTimeout,
			WriteTimeout:     cfg.WriteTimeout,
			Logger:           logger,
		}, dir, h),
		metrics: m,
	}

	tcpServer := tcp.New(tcp.Config{
		Address:         cfg.Address(),
		MaxConnections:  cfg.MaxConnections,
		TCPKeepAlive:    cfg.TCPKeepAlive,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	}, svc)
	g.Go(func() error {
		return tcpServer.Listen(ctx)
	})

	if addr := cfg.WSAddress(); addr != "" {
		wsServer := websocket.New(websocket.Config{
			Address:         addr,
			Path:            cfg.WSPath,
			AllowedOrigins:  cfg.WSAllowedOrigins,
			MaxLineLength:   cfg.MaxLineLength,
			MaxConnections:  cfg.MaxConnections,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          logger,
		}, svc)
		g.Go(func() error {
			return wsServer.Listen(ctx)
		})
	}

	if cfg.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		g.Go(func() error {
			return serveHTTP(ctx, "metrics", net.JoinHostPort(cfg.Host, cfg.MetricsPort), mux, logger)
		})
	}

	if cfg.HealthPort != "" {
		g.Go(func() error {
			return serveHTTP(ctx, "health", net.JoinHostPort(cfg.Host, cfg.HealthPort), checker.Mux(), logger)
		})
	}

	g.Go(func() error {
		return StopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("mircd service terminated with error: %s", err))
		return err
	}
	logger.Info("mircd service stopped")
	return nil
}

// newChecker builds the health checks. Each transport enforces
// MaxConnections on its own, so the identity check only degrades the
// server once every transport is full.
func newChecker(cfg mircd.Config, identities func() int) *health.Checker {
	checker := health.NewChecker(10 * time.Second)
	checker.Register("goroutines", health.Goroutines(cfg.MaxGoroutines))

	if cfg.MaxConnections > 0 {
		capacity := cfg.MaxConnections
		if cfg.WSAddress() != "" {
			capacity += cfg.MaxConnections
		}
		checker.Register("registry", health.Threshold("identities", identities, capacity-1))
	}
	return checker
}

// serveHTTP runs an auxiliary HTTP server until ctx is cancelled.
func serveHTTP(ctx context.Context, name, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+name+" server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
