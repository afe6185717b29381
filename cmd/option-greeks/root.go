package main

import (
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-greeks/internal/config"
	"github.com/contactkeval/option-greeks/internal/logger"
)

// cfg is loaded once per invocation, before any subcommand runs.
var cfg *config.Config

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "option-greeks",
		Short:         "Black-Scholes prices, implied volatility and Greeks for option chains",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger.Init(c.LoggerOptions())
			logger.SetVerbosity(c.Verbosity)
			cfg = c
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	pf.IntP("verbosity", "v", int(logger.Info), "0=error 1=info 2=debug 3=trace")
	pf.String("log-file", "", "write logs to this rotated file instead of stderr")

	root.AddCommand(
		newEnrichCmd(),
		newPriceCmd(),
		newChartCmd(),
		newServeCmd(),
	)
	return root
}

// addMarketFlags registers the flags shared by commands that fetch data.
func addMarketFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("ticker", "t", "", "underlying ticker")
	f.IntP("fridays", "n", 4, "number of weekly expirations")
	f.String("provider", "finviz", "massive, finviz, local or synthetic")
	f.String("secondary-provider", "", "fallback provider")
	f.String("data-dir", "data", "directory for raw exports and local data")
	f.String("output-dir", "data", "directory for enriched files")
	f.String("rate-source", "fred", "fred or static")
	f.Float64("rate", 0.05, "static risk-free rate (decimal)")
	f.Int("hist-vol-days", 30, "trading days behind historical volatility")
	f.String("price-source", "mid", "mid, last or model")
	f.Int("workers", 8, "contracts calibrated concurrently")
	f.Bool("save-bars", false, "store the bars used for volatility in data-dir")
	f.Int64("seed", 1, "synthetic provider seed")
	f.String("strike-filter", "", `only value contracts matching this condition, e.g. "abs(moneyness) <= 0.2"`)
}
