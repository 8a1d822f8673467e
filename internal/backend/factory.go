package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"fanliga/internal/amqp"
	"fanliga/internal/gateway"
	"fanliga/internal/gateway/memory"
	"fanliga/internal/gateway/rest"
	"fanliga/internal/gateway/sqlite"
	"fanliga/internal/metrics"
	"fanliga/internal/services"
)

// DefaultFactory builds a gateway, wraps it in the publishing ledger
// service and, when a metrics manager is set, instruments every call.
type DefaultFactory struct {
	logger  *slog.Logger
	metrics *metrics.Manager
}

func NewFactory(logger *slog.Logger, m *metrics.Manager) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, metrics: m}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		gw      gateway.Gateway
		ready   ReadyFunc
		closers []io.Closer
		err     error
	)

	switch config.Type {
	case RESTBackend:
		gw, ready, err = f.createRESTBackend(config)
	case SQLiteBackend:
		var store *sqlite.Store
		store, err = f.createSQLiteBackend(ctx, config)
		if err == nil {
			gw, ready = store, store.Ping
			closers = append(closers, store)
		}
	case MemoryBackend:
		gw, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	var publisher services.Publisher
	if client := f.createPublisher(config); client != nil {
		publisher = client
		if f.metrics != nil {
			publisher = countingPublisher{Publisher: client, m: f.metrics}
		}
		closers = append(closers, client)
	}

	service := services.NewLedgerService(gw, publisher, closers...)

	var backend gateway.Gateway = service
	if f.metrics != nil {
		backend = metrics.InstrumentGateway(service, f.metrics)
	}
	if ready == nil {
		ready = func(ctx context.Context) error { return ctx.Err() }
	}

	return &BackendResult{
		Backend: backend,
		Ready:   ready,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) createRESTBackend(config Config) (gateway.Gateway, ReadyFunc, error) {
	client, err := rest.New(rest.Config{
		BaseURL: config.BackendURL,
		APIKey:  config.BackendAPIKey,
		Timeout: config.RequestTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize REST backend: %w", err)
	}

	f.logger.Info("Initialized REST backend",
		"url", config.BackendURL,
		"timeout", config.RequestTimeout)

	ready := func(ctx context.Context) error {
		_, err := client.Matchdays(ctx)
		return err
	}
	return client, ready, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*sqlite.Store, error) {
	store, err := sqlite.NewStore(config.SQLiteDBPath, sqlite.Credentials{
		Email:    config.AdminEmail,
		Password: config.AdminPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	if err := store.SeedIfEmpty(ctx, config.DataDirectory); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to seed SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return store, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (gateway.Gateway, error) {
	store, err := memory.NewFromFiles(config.DataDirectory, memory.Credentials{
		Email:    config.AdminEmail,
		Password: config.AdminPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	return store, nil
}

// createPublisher returns nil when notifications are disabled or the broker
// is unreachable; writes then proceed without publishing.
func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change notifications", "error", err)
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

type countingPublisher struct {
	services.Publisher
	m *metrics.Manager
}

func (p countingPublisher) PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChanged) error {
	err := p.Publisher.PublishLedgerChanged(ctx, msg)
	p.m.ChangePublished(string(msg.Kind), err)
	return err
}
