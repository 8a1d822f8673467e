package backend

import (
	"fmt"

	"fanliga/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	dataDir := appConfig.SeedDir
	if dataDir == "" {
		dataDir = "data"
	}

	return Config{
		Type: backendType,

		BackendURL:     appConfig.BackendURL,
		BackendAPIKey:  appConfig.BackendAPIKey,
		RequestTimeout: appConfig.RequestTimeout,

		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: dataDir,
		AdminEmail:    appConfig.AdminEmail,
		AdminPassword: appConfig.AdminPassword,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (want one of %v)", c.Type, GetBackendTypes())
	}

	switch c.Type {
	case RESTBackend:
		if c.BackendURL == "" {
			return fmt.Errorf("backend URL is required for rest backend")
		}
		if c.BackendAPIKey == "" {
			return fmt.Errorf("backend API key is required for rest backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data" when empty
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RESTBackend, SQLiteBackend, MemoryBackend}
}
