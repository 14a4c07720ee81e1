package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamware/solarnet/internal/config"
	"github.com/dreamware/solarnet/internal/federation"
)

func newHealthCmd() *cobra.Command {
	v := viper.New()
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every hub's health endpoint",
		Long: `Probe GET /api/health on every hub in the registry and report which
hubs answer.

Examples:
  solarnet health
  solarnet health --watch --interval 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch && interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			cfg, logger, err := setup(cmd, v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			reg, err := loadRegistry(cfg.Federation.File, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			monitor := federation.NewHealthMonitor(interval, logger, nil)
			defer monitor.Stop()

			out := cmd.OutOrStdout()
			probe := func(ctx context.Context) {
				monitor.CheckAll(ctx, reg.Hubs())
				printHealth(out, reg.Hubs(), monitor)
			}

			ctx := cmd.Context()
			probe(ctx)
			if !watch {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					fmt.Fprintln(out)
					probe(ctx)
				}
			}
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&watch, "watch", "w", false, "keep probing until interrupted")
	f.DurationVar(&interval, "interval", 10*time.Second, "probe interval with --watch")
	config.BindFederationFlags(cmd, v)
	return cmd
}

func printHealth(w io.Writer, hubs []federation.HubDescriptor, monitor *federation.HealthMonitor) {
	healthy := 0
	for _, hub := range hubs {
		h := monitor.HubHealth(hub.Name)
		if h != nil && h.ConsecutiveFails == 0 {
			healthy++
			fmt.Fprintf(w, "✅ %s (%s) healthy\n", hub.Name, hub.URL)
			continue
		}
		reason := "not checked"
		if h != nil {
			reason = h.LastError
		}
		fmt.Fprintf(w, "❌ %s (%s) - %s\n", hub.Name, hub.URL, reason)
	}
	fmt.Fprintf(w, "\n%d of %d hub(s) healthy at %s\n", healthy, len(hubs), time.Now().Format("15:04:05"))
}
