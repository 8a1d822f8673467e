// Package config loads process configuration by layering defaults, an
// optional YAML file (FANLIGA_CONFIG) and FANLIGA_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FANLIGA_"

type Config struct {
	// HTTP Server
	Port     string `koanf:"port"`
	LogLevel string `koanf:"log_level"`

	// Backend selection: rest, memory or sqlite
	DataBackend string `koanf:"data_backend"`

	// Hosted backend
	BackendURL     string        `koanf:"backend_url"`
	BackendAPIKey  string        `koanf:"backend_api_key"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// Local backends
	SQLiteDBPath  string `koanf:"sqlite_db_path"`
	SeedDir       string `koanf:"seed_dir"`
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`

	// AMQP (optional)
	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`
	AMQPQueue    string `koanf:"amqp_queue"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `koanf:"google_spreadsheet_id"`
	GoogleServiceAccountFile string `koanf:"google_service_account_file"`
	GoogleServiceAccountJSON string `koanf:"google_service_account_json"`
	LedgerSheetName          string `koanf:"ledger_sheet_name"`
	TotalsSheetName          string `koanf:"totals_sheet_name"`

	// Worker
	SyncInterval time.Duration `koanf:"sync_interval"`

	// Presentation
	RulesPath        string        `koanf:"rules_path"`
	DefaultSort      string        `koanf:"default_sort"`
	DefaultDirection string        `koanf:"default_direction"`
	ChartWidth       float64       `koanf:"chart_width"`
	ChartHeight      float64       `koanf:"chart_height"`
	ChartInset       float64       `koanf:"chart_inset"`
	SessionTTL       time.Duration `koanf:"session_ttl"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:             "8081",
		LogLevel:         "info",
		DataBackend:      "memory",
		SQLiteDBPath:     "./data/fanliga.db",
		SeedDir:          "data",
		AMQPExchange:     "fanliga",
		AMQPQueue:        "ledger_changes",
		LedgerSheetName:  "Ledger",
		TotalsSheetName:  "Totals",
		SyncInterval:     5 * time.Minute,
		DefaultSort:      "date",
		DefaultDirection: "desc",
		ChartWidth:       600,
		ChartHeight:      240,
		ChartInset:       24,
		SessionTTL:       12 * time.Hour,
	}
}

// Load builds a Config. Order of precedence (low -> high):
//  1. defaults
//  2. YAML file if FANLIGA_CONFIG is set
//  3. env (prefix FANLIGA_), e.g. FANLIGA_DATA_BACKEND -> data_backend
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	switch c.DataBackend {
	case "rest":
		if c.BackendURL == "" {
			errors = append(errors, "backend URL is required when using rest backend")
		} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid backend URL '%s': must be an http(s) URL", c.BackendURL))
		}
		if c.BackendAPIKey == "" {
			errors = append(errors, "backend API key is required when using rest backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [rest memory sqlite]", c.DataBackend))
	}

	if c.RequestTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must not be negative", c.RequestTimeout))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.DefaultSort {
	case "date", "participant", "team", "amount":
	default:
		errors = append(errors, fmt.Sprintf("invalid default sort '%s': must be one of date, participant, team, amount", c.DefaultSort))
	}
	if c.DefaultDirection != "asc" && c.DefaultDirection != "desc" {
		errors = append(errors, fmt.Sprintf("invalid default direction '%s': must be asc or desc", c.DefaultDirection))
	}

	if c.ChartWidth <= 0 || c.ChartHeight <= 0 || c.ChartInset < 0 {
		errors = append(errors, fmt.Sprintf("invalid chart box %vx%v inset %v: sizes must be positive", c.ChartWidth, c.ChartHeight, c.ChartInset))
	} else if 2*c.ChartInset >= c.ChartWidth || 2*c.ChartInset >= c.ChartHeight {
		errors = append(errors, fmt.Sprintf("invalid chart inset %v: must leave room inside %vx%v", c.ChartInset, c.ChartWidth, c.ChartHeight))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.RulesPath != "" {
		if _, err := os.Stat(c.RulesPath); err != nil {
			errors = append(errors, fmt.Sprintf("rules file not readable: %s", c.RulesPath))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings only the mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the mirror worker")
	}
	if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either FANLIGA_GOOGLE_SERVICE_ACCOUNT_FILE or FANLIGA_GOOGLE_SERVICE_ACCOUNT_JSON must be provided")
	} else if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.LedgerSheetName == "" || c.TotalsSheetName == "" {
		errors = append(errors, "ledger and totals sheet names cannot be empty")
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
