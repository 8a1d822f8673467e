package main

import (
	"context"
	"fmt"
	"os"

	"fanliga/internal/cli"
	appweb "fanliga/web"
)

func main() {
	cli.LoadEnvFile()

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Env, error) {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return nil, err
		}
		// Logs go to stderr so table and CSV output stays clean.
		level := "warn"
		if cfg.LogLevel == "debug" {
			level = "debug"
		}
		logger := cli.SetupLogger(os.Stderr, level, "fanliga-cli")

		result, err := cli.OpenBackend(ctx, logger, cfg, nil)
		if err != nil {
			return nil, err
		}

		rules := appweb.DefaultRules
		if cfg.RulesPath != "" {
			if rules, err = os.ReadFile(cfg.RulesPath); err != nil {
				_ = result.Cleanup()
				return nil, fmt.Errorf("read rules %s: %w", cfg.RulesPath, err)
			}
		}

		return &cli.Env{
			Gateway: result.Backend,
			Rules:   rules,
			Close:   result.Cleanup,
		}, nil
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
