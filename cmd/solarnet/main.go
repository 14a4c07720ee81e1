// Command solarnet searches a federation of community hubs for shareable
// resources and runs the federation's search gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/config"
	"github.com/dreamware/solarnet/internal/federation"
	"github.com/dreamware/solarnet/internal/logging"
	"github.com/dreamware/solarnet/internal/registry"
	"github.com/dreamware/solarnet/internal/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "solarnet",
		Short: "Search federated community hubs for shareable resources",
		Long: `solarnet - find tools, food, skills, energy, water, space and knowledge
shared by community hubs.

Client commands:
  solarnet search            Search every hub in the federation
  solarnet health            Probe every hub's health endpoint
  solarnet add               Add a resource to one hub

Server commands:
  solarnet gateway           Serve federated searches over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.AddCommonFlags(root)

	root.AddCommand(newSearchCmd())
	root.AddCommand(newHealthCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newGatewayCmd())
	return root
}

// setup loads configuration and builds the logger for one command.
func setup(cmd *cobra.Command, v *viper.Viper) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadCommand(cmd, v)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadRegistry reads the hub registry, printing the setup tip to w when the
// file is missing or lists no hubs.
func loadRegistry(path string, w io.Writer) (*registry.Registry, error) {
	reg, err := registry.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(w, "❌ Error: %s not found!\n\n%s\n", path, render.RegistryTip())
		return nil, err
	case errors.Is(err, federation.ErrEmptyRegistry):
		fmt.Fprintf(w, "❌ Error: %s lists no hubs\n\n%s\n", path, render.RegistryTip())
		return nil, err
	case err != nil:
		return nil, err
	}
	return reg, nil
}

func newSearchComponents(cfg *config.Config, logger *zap.Logger, metrics *federation.Metrics) *federation.Aggregator {
	client := federation.NewClient(cfg.ClientConfig(), logger, metrics)
	return federation.NewAggregator(client, cfg.AggregatorConfig(), logger, metrics)
}
