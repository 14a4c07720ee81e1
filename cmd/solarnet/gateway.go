package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/config"
	"github.com/dreamware/solarnet/internal/federation"
	"github.com/dreamware/solarnet/internal/gateway"
	"github.com/dreamware/solarnet/internal/httpserver"
)

func newGatewayCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve federated searches over HTTP",
		Long: `Serve federated searches over HTTP for callers that cannot reach every
hub themselves. The registry is read once at startup; hubs are checked in the
background and their health is listed at /hubs.

Examples:
  solarnet gateway
  solarnet gateway --addr :9090 --federation-file hubs.yaml
  curl 'localhost:8080/api/search?type=tool&query=saw'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			reg, err := loadRegistry(cfg.Federation.File, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			metrics := federation.NewMetrics()
			agg := newSearchComponents(cfg, logger, metrics)

			monitor := federation.NewHealthMonitor(cfg.Gateway.HealthInterval, logger, metrics)
			monitor.SetOnUnhealthy(func(hub string) {
				logger.Warn("hub marked unhealthy", zap.String("hub", hub))
			})
			go monitor.Start(cmd.Context(), reg.Hubs)
			defer monitor.Stop()

			srv := gateway.NewServer(reg, agg, monitor, metrics,
				gateway.Config{DefaultTimeout: cfg.Federation.Timeout}, logger)

			logger.Info("gateway ready",
				zap.Int("hubs", reg.Len()),
				zap.String("registry", cfg.Federation.File))
			return httpserver.Run(cmd.Context(), cfg.Gateway.Addr, srv, logger.With(zap.String("component", "http")))
		},
	}

	config.BindFederationFlags(cmd, v)
	config.BindGatewayFlags(cmd, v)
	return cmd
}
