package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/config"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/report"
)

func newEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Price every contract of the next N weekly expirations and write *_with_greeks_*.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			sum, err := runEnrichment(ctx, cfg)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			logger.Infof("finished in %v", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	addMarketFlags(cmd)
	return cmd
}

// runEnrichment wires providers, the enricher and the report writers for c.
func runEnrichment(ctx context.Context, c *config.Config) (chain.Summary, error) {
	prov, err := c.NewProvider()
	if err != nil {
		return chain.Summary{}, err
	}

	e := &chain.Enricher{
		Provider: prov,
		Rates:    c.NewRateSource(),
		Config: chain.Config{
			Ticker:       c.Ticker,
			Fridays:      c.Fridays,
			HistVolDays:  c.HistVolDays,
			PriceSource:  c.PriceSourceValue(),
			Workers:      c.Workers,
			Calibration:  c.Calibration,
			StrikeFilter: c.StrikeFilter,
		},
		OnExpiry: func(res chain.ExpiryResult) error {
			paths, err := report.WriteExpiry(c.OutputDir, c.Ticker, res)
			for _, p := range paths {
				logger.Infof("wrote %s", p)
			}
			return err
		},
	}
	if c.SaveBars {
		e.Config.SaveBarsDir = c.DataDir
	}

	sum, err := e.Run(ctx)
	if err != nil {
		return sum, err
	}
	path, err := report.WriteJSON(sum, c.OutputDir)
	if err != nil {
		return sum, err
	}
	logger.Infof("wrote %s", path)
	return sum, nil
}

func printSummary(w io.Writer, sum chain.Summary) {
	fmt.Fprintf(w, "%s spot=%.4f rate=%.4f hist_vol=%.4f price_source=%s\n",
		sum.Ticker, sum.Spot, sum.Rate, sum.HistoricalVolatility, sum.PriceSource)
	for _, e := range sum.Expiries {
		switch {
		case e.Error != "":
			fmt.Fprintf(w, "  %s  %3dd  error: %s\n", e.Expiry, e.Days, e.Error)
		case e.ATM != nil:
			fmt.Fprintf(w, "  %s  %3dd  %4d contracts  atm %.2f iv=%.4f\n", e.Expiry, e.Days, e.Contracts, e.ATM.Strike, e.ATM.Volatility)
		default:
			fmt.Fprintf(w, "  %s  %3dd  %4d contracts\n", e.Expiry, e.Days, e.Contracts)
		}
	}
	fmt.Fprintf(w, "contracts=%d converged=%d max_iterations=%d degenerate=%d out_of_bounds=%d failed=%d\n",
		sum.Contracts, sum.Converged, sum.MaxIterations, sum.Degenerate, sum.OutOfBounds, sum.Failed)
}
