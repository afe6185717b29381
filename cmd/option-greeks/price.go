package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-greeks/internal/calendar"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// PriceRequest describes one contract. Time wins over Days when both are set.
// Without Sigma, Market is required and the implied volatility is used.
type PriceRequest struct {
	Spot   float64 `form:"spot" json:"spot" binding:"required,gt=0"`
	Strike float64 `form:"strike" json:"strike" binding:"required,gt=0"`
	Time   float64 `form:"time" json:"time" binding:"gte=0"`
	Days   int     `form:"days" json:"days" binding:"gte=0"`
	Rate   float64 `form:"rate" json:"rate"`
	Sigma  float64 `form:"sigma" json:"sigma" binding:"gte=0"`
	Kind   string  `form:"kind" json:"kind" binding:"required"`
	Market float64 `form:"market" json:"market" binding:"gte=0"`
}

type PriceResponse struct {
	Kind  string  `json:"kind"`
	Time  float64 `json:"time"`
	Sigma float64 `json:"sigma"`
	Price float64 `json:"price"`
	D1    float64 `json:"d1"`
	D2    float64 `json:"d2"`
	Delta float64 `json:"delta"`
	Vega  float64 `json:"vega"`
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`

	ImpliedVolatility *pricing.CalibrationResult `json:"implied_volatility,omitempty"`
}

// evaluate prices req, calibrating first when a market price is given.
func evaluate(req PriceRequest, cal pricing.CalibrationConfig) (PriceResponse, error) {
	kind, err := pricing.ParseOptionKind(req.Kind)
	if err != nil {
		return PriceResponse{}, err
	}
	T := req.Time
	if T == 0 {
		T = calendar.YearFraction(req.Days)
	}
	spec := pricing.ContractSpec{Spot: req.Spot, Strike: req.Strike, Time: T, Rate: req.Rate, Kind: kind}
	if err := spec.Validate(); err != nil {
		return PriceResponse{}, err
	}

	resp := PriceResponse{Kind: kind.String(), Time: T, Sigma: req.Sigma}
	resp.Lower, resp.Upper = pricing.PriceBounds(spec)

	if req.Market > 0 {
		seed := req.Sigma
		if seed <= 0 {
			seed = 0.2
		}
		cr, err := pricing.ImpliedVolatility(spec, req.Market, seed, cal)
		if err != nil {
			return resp, err
		}
		resp.ImpliedVolatility = &cr
		if req.Sigma <= 0 {
			resp.Sigma = cr.Sigma
		}
	}
	if resp.Sigma <= 0 {
		return resp, errors.Wrap(pricing.ErrInvalidInput, "sigma or market price is required")
	}

	p, err := pricing.Price(spec, resp.Sigma)
	if err != nil {
		return resp, err
	}
	s, err := pricing.Sensitivities(spec, resp.Sigma)
	if err != nil {
		return resp, err
	}
	resp.Price, resp.D1, resp.D2 = p.Price, p.D1, p.D2
	resp.Delta, resp.Vega = s.Delta, s.Vega
	return resp, nil
}

func newPriceCmd() *cobra.Command {
	var (
		req    PriceRequest
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price one contract, optionally inverting a market price to implied volatility",
		Example: `  option-greeks price --spot 100 --strike 105 --days 30 --sigma 0.25 --kind put
  option-greeks price --spot 100 --strike 100 --time 0.25 --market 4.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateForPricing(); err != nil {
				return err
			}
			req.Rate = cfg.Rate.Value

			resp, err := evaluate(req, cfg.Calibration)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			if iv := resp.ImpliedVolatility; iv != nil {
				fmt.Fprintf(out, "implied vol %.8f (%s, %d iterations)\n", iv.Sigma, iv.Status, iv.Iterations)
			}
			fmt.Fprintf(out, "%s price %.6f at sigma %.6f, T %.6f\n", resp.Kind, resp.Price, resp.Sigma, resp.Time)
			fmt.Fprintf(out, "delta %.6f  vega %.6f\n", resp.Delta, resp.Vega)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&req.Spot, "spot", 0, "spot price")
	f.Float64Var(&req.Strike, "strike", 0, "strike price")
	f.Float64Var(&req.Time, "time", 0, "years to expiry")
	f.IntVar(&req.Days, "days", 0, "calendar days to expiry, used when --time is not set")
	f.Float64Var(&req.Sigma, "sigma", 0, "volatility")
	f.StringVar(&req.Kind, "kind", "call", "call or put")
	f.Float64Var(&req.Market, "market", 0, "observed option price to invert")
	f.Float64("rate", 0.05, "risk-free rate (decimal)")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("spot")
	_ = cmd.MarkFlagRequired("strike")
	return cmd
}
