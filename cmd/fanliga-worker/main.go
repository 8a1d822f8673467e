package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"fanliga/internal/amqp"
	"fanliga/internal/cli"
	"fanliga/internal/config"
	applog "fanliga/internal/log"
	"fanliga/internal/metrics"
	"fanliga/internal/sheets"
	gsheet "fanliga/internal/sheets/google"
	memsheet "fanliga/internal/sheets/memory"
	"fanliga/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err == nil && cfg.GoogleSpreadsheetID != "" {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		cli.SetupLogger(os.Stdout, "info", "fanliga-worker").Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(os.Stdout, cfg.LogLevel, "fanliga-worker")
	logger.Info("Starting fanliga-worker", "backend", cfg.DataBackend, "sync_interval", cfg.SyncInterval)

	m := metrics.NewManager(metrics.WithRuntimeCollectors())

	result, err := cli.OpenBackend(context.Background(), logger, cfg, m)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	mirror, err := newMirror(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	mirrorWorker := worker.NewMirrorWorker(result.Backend, mirror, m)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled, relying on periodic resync only")
	}

	statusSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           statusRoutes(m, mirrorWorker, cfg.SyncInterval),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parent, stop := context.WithCancelCause(context.Background())
	defer stop(nil)
	g, gctx := errgroup.WithContext(parent)

	ctx, done := cli.GracefulShutdown(gctx, logger, 30*time.Second, func(ctx context.Context) {
		stop(context.Canceled)
		if err := statusSrv.Shutdown(ctx); err != nil {
			logger.Error("Status server shutdown error", "error", err)
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := mirrorWorker.StartupSync(gctx); err != nil {
		// Not fatal: the periodic resync retries.
		logger.Error("Startup mirror sync failed", "error", err)
	}

	g.Go(func() error {
		logger.Info("Status server listening", "addr", statusSrv.Addr)
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(mirrorWorker.Run(gctx, cfg.SyncInterval))
	})
	if consumer != nil {
		g.Go(func() error {
			return ignoreCanceled(consumer.ConsumeLedgerChanged(gctx, func(msg *amqp.LedgerChanged) error {
				return mirrorWorker.HandleLedgerChanged(gctx, msg)
			}))
		})
	}

	cli.WaitForShutdown(ctx, done)
	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func newMirror(ctx context.Context, logger *applog.Logger, cfg *config.Config) (sheets.Mirror, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("Google Sheets disabled - no spreadsheet id provided, keeping the mirror in memory")
		return memsheet.New(), nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		LedgerSheet:        cfg.LedgerSheetName,
		TotalsSheet:        cfg.TotalsSheetName,
	})
}

// statusRoutes serves metrics and a health check that fails once the
// mirror is more than three intervals behind.
func statusRoutes(m *metrics.Manager, w *worker.MirrorWorker, interval time.Duration) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		last := w.LastSync()
		status, code := "healthy", http.StatusOK
		if last.IsZero() || time.Since(last) > 3*interval {
			status, code = "stale", http.StatusServiceUnavailable
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"status":    status,
			"last_sync": last,
		})
	}).Methods(http.MethodGet)
	return r
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
