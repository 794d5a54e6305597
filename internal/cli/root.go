// Package cli contains the cobra commands for the loanflow daemon: the serve
// loop and operator inspection commands. This is process bootstrap, not a
// network-facing surface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/loanflow/internal/config"
	"github.com/example/loanflow/internal/wire"
)

var configPath string

// RootFlags registers persistent flags on the root command.
func RootFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to loanflow config YAML")
}

// loadConfig reads the configured YAML file, or defaults when none is given.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// buildApp wires the application for a command invocation.
func buildApp() (*wire.App, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	application, err := wire.Build(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wire application: %w", err)
	}
	return application, logger, nil
}

// NewContext returns the base context for CLI command execution.
func NewContext() context.Context {
	return context.Background()
}
