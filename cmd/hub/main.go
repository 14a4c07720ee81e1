// Command hub serves one community hub's resource catalog over HTTP.
//
//	hub --addr :8081 --resources-file resources.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/catalog"
	"github.com/dreamware/solarnet/internal/config"
	"github.com/dreamware/solarnet/internal/httpserver"
	"github.com/dreamware/solarnet/internal/hub"
	"github.com/dreamware/solarnet/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Serve a community hub's resource catalog",
		Long: `Serve a community hub's resource catalog over HTTP.

The catalog is a JSON array of resources. A missing file is created with
one example record.

Examples:
  hub
  hub --addr :9000 --resources-file /srv/hub/resources.json
  SOLARNET_HUB_ADDR=:9000 hub`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCommand(cmd, v)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg.Hub, logger)
		},
	}

	config.AddCommonFlags(cmd)
	config.BindHubFlags(cmd, v)
	return cmd
}

func run(ctx context.Context, cfg config.HubConfig, logger *zap.Logger) error {
	store, err := catalog.NewFileStore(cfg.ResourcesFile, logger)
	if err != nil {
		return err
	}

	srv := hub.NewServer(store, logger, hub.NewMetrics())
	logger.Info("serving catalog",
		zap.String("resources_file", store.Path()),
		zap.Int("resources", store.Len()))

	return httpserver.Run(ctx, cfg.Addr, srv, logger.With(zap.String("component", "http")))
}
