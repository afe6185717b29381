package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-greeks/internal/config"
	"github.com/contactkeval/option-greeks/internal/logger"
)

// RunRequest overrides the loaded ticker and expiration count for one run.
type RunRequest struct {
	Ticker  string `json:"ticker" binding:"omitempty,printascii,max=12"`
	Fridays int    `json:"fridays" binding:"gte=0,lte=52"`
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /health, /price and /run over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateForPricing(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	addMarketFlags(cmd)
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func serve(ctx context.Context, c *config.Config) error {
	gin.SetMode(gin.ReleaseMode)
	if c.Verbosity >= int(logger.Debug) {
		gin.SetMode(gin.DebugMode)
	}
	server := &http.Server{
		Addr:              c.Server.Addr,
		Handler:           newRouter(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", c.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case <-quit:
			logger.Infof("shutting down")
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(c *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	r.GET("/price", func(ctx *gin.Context) {
		req := PriceRequest{Kind: "call", Rate: c.Rate.Value}
		if err := ctx.ShouldBindQuery(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := evaluate(req, c.Calibration)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, resp)
	})

	// one enrichment at a time; runs share the output files
	var running sync.Mutex
	r.POST("/run", func(ctx *gin.Context) {
		var req RunRequest
		if ctx.Request.ContentLength > 0 {
			if err := ctx.ShouldBindJSON(&req); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		run := *c
		if req.Ticker != "" {
			run.Ticker = req.Ticker
		}
		if req.Fridays > 0 {
			run.Fridays = req.Fridays
		}
		run.Ticker = config.NormalizeTicker(run.Ticker)
		if err := run.Validate(); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !running.TryLock() {
			ctx.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		defer running.Unlock()

		logger.Infof("received /run for %s", run.Ticker)
		sum, err := runEnrichment(ctx.Request.Context(), &run)
		if err != nil {
			logger.Errorf("/run %s: %v", run.Ticker, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, sum)
	})
	return r
}
