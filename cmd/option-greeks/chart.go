package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-greeks/internal/calendar"
	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/chart"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/report"
)

func newChartCmd() *cobra.Command {
	var (
		kind   string
		strike string
		opts   chart.Options
		bucket string
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Build candle, SMA and Bollinger band series from enriched files into chart_<TICK>.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Ticker == "" {
				return errors.New("--ticker is required")
			}
			k, err := pricing.ParseOptionKind(kind)
			if err != nil {
				return err
			}
			if bucket != "" {
				if opts.Bucket, err = time.ParseDuration(bucket); err != nil {
					return errors.Wrap(err, "--bucket")
				}
			}

			expiries := calendar.NextFridays(time.Now(), cfg.Fridays)
			rows, err := chart.Load(cfg.OutputDir, cfg.Ticker, k, expiries)
			if err != nil {
				return err
			}
			if strike != "" {
				if rows, err = atStrike(rows, strike); err != nil {
					return err
				}
			}
			candles := chart.Build(rows, opts)
			if len(candles) == 0 {
				logger.Warnf("%d rows gave no complete %d-candle window", len(rows), opts.Window)
			}

			path, err := chart.WriteCSV(cfg.OutputDir, cfg.Ticker, candles)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d candles from %d rows written to %s\n", len(candles), len(rows), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("ticker", "t", "", "underlying ticker")
	f.IntP("fridays", "n", 4, "number of weekly expirations to read")
	f.String("output-dir", "data", "directory holding the enriched files")
	f.StringVar(&kind, "kind", "call", "call or put files")
	f.IntVar(&opts.Window, "window", 20, "SMA and standard deviation window")
	f.Float64Var(&opts.K, "k", 2, "band width in standard deviations")
	f.StringVar(&bucket, "bucket", "24h", "candle width; 0s groups identical trade stamps")
	f.StringVar(&strike, "strike", "", "chart one strike per expiry: ATM, ATM:+5, ATM:-10% or DELTA:0.25")
	return cmd
}

// atStrike narrows rows to one strike per expiry. ATM forms take spot from
// the last enrich summary.
func atStrike(rows []chain.Row, expr string) ([]chain.Row, error) {
	var spot float64
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(expr)), "ATM") {
		sum, err := report.ReadJSON(cfg.OutputDir, cfg.Ticker)
		if err != nil {
			return nil, errors.Wrap(err, "--strike needs the spot from an enrich run")
		}
		spot = sum.Spot
	}
	return chart.AtStrike(rows, expr, spot)
}
