// Package cli implements the signcheck command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/signcheck/internal/config"
	"github.com/ayusman/signcheck/internal/logger"
)

// NewRootCmd builds the signcheck command tree.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "signcheck",
		Short: "Hand-sign letter recognition and assessment service",
		Long: `signcheck classifies 21-point hand landmarks as fingerspelled letters
and scores learners against timed lesson assessments.

Configuration is read from defaults, an optional YAML file (--config or
SIGNCHECK_CONFIG) and SIGNCHECK_* environment variables, in that order.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	load := func(ctx context.Context) (*config.Config, error) {
		return loadConfig(ctx, configPath)
	}

	root.AddCommand(NewServeCmd(load))
	root.AddCommand(NewPredictCmd(load))
	root.AddCommand(NewInitModelCmd(load))
	root.AddCommand(NewCatalogCmd(load))
	root.AddCommand(NewProgressCmd(load))
	return root
}

// configLoader returns the effective configuration for a command.
type configLoader func(ctx context.Context) (*config.Config, error)

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := logger.InitWith(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
