package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinvizProvider(t *testing.T) {
	export, err := os.ReadFile("testdata/DJT_2025-01-17_export.csv")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("auth") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/export/options":
			assert.Equal(t, "DJT", q.Get("t"))
			assert.Equal(t, "oc", q.Get("ty"))
			assert.Equal(t, "2025-01-17", q.Get("e"))
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write(export)
		case "/api/quote.ashx":
			w.Header().Set("Content-Type", "application/json")
			if q.Get("timeframe") == "d" {
				_, _ = w.Write([]byte(`{"ticker":"DJT","date":[1736121600,1736208000,1736294400],
					"open":[34.1,35.0,34.6],"high":[35.2,35.8,34.9],"low":[33.9,34.4,33.7],
					"close":[35.0,34.6,34.0],"volume":[1200000,980000,1100000]}`))
				return
			}
			_, _ = w.Write([]byte(`{"ticker":"DJT","dataId":"98127|34.87"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	dir := t.TempDir()
	p := NewFinvizDataProvider("secret", srv.URL, dir, nil)

	chain, err := p.GetOptionChain(ctx, "djt", expiryDate)
	require.NoError(t, err)
	assert.Len(t, chain, 5)

	saved, err := os.ReadFile(filepath.Join(dir, "DJT_2025-01-17_export.csv"))
	require.NoError(t, err)
	assert.Equal(t, export, saved)

	spot, err := p.GetSpotPrice(ctx, "DJT")
	require.NoError(t, err)
	assert.Equal(t, 34.87, spot)

	bars, err := p.GetBars(ctx, "DJT", time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 34.0, bars[1].Close)
}

func TestFinvizProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/quote.ashx" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ticker":"DJT","dataId":""}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewFinvizDataProvider("secret", srv.URL, "", nil)

	_, err := p.GetOptionChain(ctx, "DJT", expiryDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	_, err = p.GetSpotPrice(ctx, "DJT")
	assert.Error(t, err)

	// a secondary provider takes over a failed export
	p.secondary = NewLocalDataProvider("testdata", nil)
	chain, err := p.GetOptionChain(ctx, "DJT", expiryDate)
	require.NoError(t, err)
	assert.Len(t, chain, 5)
}
