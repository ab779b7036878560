// Package main is the gcstore command-line client for Google Cloud Storage.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gcstore/gcstore"
	"github.com/gcstore/gcstore/internal/config"
	"github.com/gcstore/gcstore/internal/logging"
	"github.com/gcstore/gcstore/internal/metrics"
)

// app holds state shared by all subcommands after root initialization.
type app struct {
	cfg    *config.Config
	client *gcstore.Client
}

var (
	flagConfig    string
	flagEndpoint  string
	flagBucket    string
	flagProject   string
	flagLogLevel  string
	flagLogFormat string
	flagNoAuth    bool
)

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "gcstore",
		Short:         "Google Cloud Storage command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to configuration file")
	root.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "service base URL (default: public GCS)")
	root.PersistentFlags().StringVar(&flagBucket, "bucket", "", "default bucket for commands without an explicit bucket")
	root.PersistentFlags().StringVar(&flagProject, "project", "", "project ID for bucket creation and listing")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	root.PersistentFlags().BoolVar(&flagNoAuth, "no-auth", false, "skip request authorization (emulator use only)")

	root.AddCommand(a.bucketsCmd(), a.objectsCmd(), a.aclCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "gcstore: %v\n", err)
		os.Exit(1)
	}
}

// init loads configuration, applies flag overrides, and builds the client.
func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	// Command-line flags override config file values.
	if flagEndpoint != "" {
		cfg.Endpoint = flagEndpoint
	}
	if flagBucket != "" {
		cfg.DefaultBucket = flagBucket
	}
	if flagProject != "" {
		cfg.Project = flagProject
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	opts := []gcstore.Option{
		gcstore.WithDefaultBucket(cfg.DefaultBucket),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, gcstore.WithEndpoint(cfg.Endpoint))
	}
	if flagNoAuth {
		opts = append(opts, gcstore.WithoutAuthentication())
	}
	if cfg.Metrics {
		metrics.Register()
		opts = append(opts, gcstore.WithMetrics(metrics.ClientRecorder{}))
	}

	a.client, err = gcstore.NewClient(ctx, opts...)
	return err
}

// project returns the configured project or an error naming the flag.
func (a *app) project() (string, error) {
	if a.cfg.Project == "" {
		return "", fmt.Errorf("a project is required: set --project or the config file's project field")
	}
	return a.cfg.Project, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gcstore.yaml"
	}
	return filepath.Join(home, ".gcstore.yaml")
}
