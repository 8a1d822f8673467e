package backend

import (
	"context"
	"time"

	"fanliga/internal/gateway"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the backend instance and its lifecycle hooks.
type BackendResult struct {
	Backend gateway.Gateway
	Ready   ReadyFunc
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Hosted REST backend
	BackendURL     string
	BackendAPIKey  string
	RequestTimeout time.Duration

	// Local backends
	SQLiteDBPath  string
	DataDirectory string
	AdminEmail    string
	AdminPassword string

	// Change notifications, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	RESTBackend   BackendType = "rest"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
