package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fanliga/internal/aggregate"
	"fanliga/internal/cli"
	apphttp "fanliga/internal/http"
	"fanliga/internal/metrics"
	"fanliga/internal/middleware/ratelimit"
	"fanliga/internal/session"
	"fanliga/internal/views"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.SetupLogger(os.Stdout, "info", "fanliga").Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(os.Stdout, cfg.LogLevel, "fanliga")
	logger.Info("Starting fanliga", "backend", cfg.DataBackend, "port", cfg.Port)

	m := metrics.NewManager(metrics.WithRuntimeCollectors())

	result, err := cli.OpenBackend(context.Background(), logger, cfg, m)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	viewService := views.NewService(result.Backend, views.Options{
		Box: aggregate.Box{
			Width:  cfg.ChartWidth,
			Height: cfg.ChartHeight,
			Inset:  cfg.ChartInset,
		},
		DefaultSort:      aggregate.SortKey(cfg.DefaultSort),
		DefaultDirection: aggregate.Direction(cfg.DefaultDirection),
		OnDiscard:        m.ViewDiscarded,
	})

	var rules *views.Rules
	if cfg.RulesPath != "" {
		rules = views.NewRules(views.FileRules(cfg.RulesPath, os.ReadFile), time.Hour)
		logger.Info("Serving rules from file", "path", cfg.RulesPath)
	}

	sessions := session.NewStore(result.Backend, cfg.SessionTTL, func(s session.State) {
		m.SessionTransition(s.Kind.String())
	})

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Views:        viewService,
		Rules:        rules,
		Writer:       result.Backend,
		Sessions:     sessions,
		Metrics:      m,
		Ready:        result.Ready,
		Logger:       logger,
		RateLimit:    ratelimit.DefaultConfig(),
		CacheCleanup: 5 * time.Minute,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", "error", err)
		os.Exit(1)
	}

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	serveErr := make(chan error, 1)
	parent, stop := context.WithCancelCause(context.Background())
	defer stop(nil)

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop(err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	select {
	case err := <-serveErr:
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	default:
	}
	logger.Info("Server stopped gracefully")
}
