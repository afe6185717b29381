package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/contactkeval/option-greeks/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
