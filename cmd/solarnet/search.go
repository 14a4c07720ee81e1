package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/config"
	"github.com/dreamware/solarnet/internal/render"
	"github.com/dreamware/solarnet/internal/resource"
)

func newSearchCmd() *cobra.Command {
	v := viper.New()
	var (
		typeName string
		query    string
		output   string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search every hub in the federation",
		Long: `Query every hub in the registry at once and list what they share.

Hubs that are offline, slow or broken are reported and skipped; the search
still lists everything the other hubs returned.

Examples:
  solarnet search
  solarnet search --type tool
  solarnet search --query saw --timeout 2s
  solarnet search --federation-file hubs.yaml --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, err := resource.ParseType(typeName)
			if err != nil {
				return err
			}
			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}
			filter := resource.Filter{Type: typ, Text: query}

			cfg, logger, err := setup(cmd, v)
			if err != nil {
				return err
			}
			if !verbose {
				logger = zap.NewNop()
			}
			defer func() { _ = logger.Sync() }()

			reg, err := loadRegistry(cfg.Federation.File, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == render.FormatText {
				fmt.Fprintf(out, "\n%s\n\n", render.Header(filter))
			}

			agg := newSearchComponents(cfg, logger, nil)
			result, err := agg.Search(cmd.Context(), reg.Hubs(), filter, cfg.Federation.Timeout)
			if err != nil {
				return err
			}
			return render.Write(out, format, result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&typeName, "type", "", "resource type ("+resource.TypeNames()+")")
	f.StringVar(&query, "query", "", "text to match in name or classification")
	f.StringVarP(&output, "output", "o", "text", "output format (text, json)")
	f.BoolVarP(&verbose, "verbose", "v", false, "log hub queries to stderr")
	config.BindFederationFlags(cmd, v)
	return cmd
}
