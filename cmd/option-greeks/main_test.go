package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/config"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load("", nil)
	require.NoError(t, err)
	dir := t.TempDir()
	c.Ticker = "DJT"
	c.Fridays = 2
	c.Provider = "synthetic"
	c.Rate.Source = "static"
	c.Rate.Value = 0.05
	c.DataDir = dir
	c.OutputDir = dir
	c.Workers = 4
	return c
}

func TestEvaluate(t *testing.T) {
	cal := pricing.DefaultCalibrationConfig()

	t.Run("priced at sigma", func(t *testing.T) {
		resp, err := evaluate(PriceRequest{Spot: 100, Strike: 100, Time: 0.25, Rate: 0.05, Sigma: 0.2, Kind: "call"}, cal)
		require.NoError(t, err)
		assert.InDelta(t, 4.6150, resp.Price, 1e-4)
		assert.InDelta(t, 0.56946, resp.Delta, 1e-4)
		assert.InDelta(t, 19.644, resp.Vega, 1e-3)
		assert.Nil(t, resp.ImpliedVolatility)
	})

	t.Run("market price inverted", func(t *testing.T) {
		resp, err := evaluate(PriceRequest{Spot: 100, Strike: 100, Time: 0.25, Rate: 0.05, Kind: "call", Market: 4.615}, cal)
		require.NoError(t, err)
		require.NotNil(t, resp.ImpliedVolatility)
		assert.True(t, resp.ImpliedVolatility.Converged)
		assert.InDelta(t, 0.2, resp.Sigma, 1e-3)
		assert.InDelta(t, 4.615, resp.Price, 1e-6)
	})

	t.Run("days used without time", func(t *testing.T) {
		resp, err := evaluate(PriceRequest{Spot: 100, Strike: 105, Days: 365, Rate: 0.05, Sigma: 0.25, Kind: "put"}, cal)
		require.NoError(t, err)
		assert.Equal(t, "put", resp.Kind)
		assert.InDelta(t, 1.0, resp.Time, 1e-12)
		assert.Less(t, resp.Delta, 0.0)
	})

	errs := []struct {
		name string
		req  PriceRequest
	}{
		{"no sigma or market", PriceRequest{Spot: 100, Strike: 100, Time: 0.25, Kind: "call"}},
		{"bad kind", PriceRequest{Spot: 100, Strike: 100, Time: 0.25, Sigma: 0.2, Kind: "straddle"}},
		{"no expiry", PriceRequest{Spot: 100, Strike: 100, Sigma: 0.2, Kind: "call"}},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluate(tt.req, cal)
			assert.Error(t, err)
		})
	}
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testConfig(t))

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
	})

	t.Run("price", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/price?spot=100&strike=100&time=0.25&sigma=0.2", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp PriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "call", resp.Kind)
		assert.InDelta(t, 0.56946, resp.Delta, 1e-4)
	})

	t.Run("price missing spot", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/price?strike=100&time=0.25&sigma=0.2", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("run", func(t *testing.T) {
		body := bytes.NewBufferString(`{"ticker":"spy","fridays":1}`)
		req := httptest.NewRequest(http.MethodPost, "/run", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var sum chain.Summary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
		assert.Equal(t, "SPY", sum.Ticker)
		assert.Len(t, sum.Expiries, 1)
		assert.Greater(t, sum.Spot, 0.0)
	})
}

func TestRunEnrichment(t *testing.T) {
	c := testConfig(t)

	sum, err := runEnrichment(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "DJT", sum.Ticker)
	assert.Len(t, sum.Expiries, 2)
	assert.Greater(t, sum.Contracts, 0)

	_, err = os.Stat(filepath.Join(c.OutputDir, "DJT_summary.json"))
	assert.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, sum)
	assert.Contains(t, buf.String(), "DJT spot=")
}
