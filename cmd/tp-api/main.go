// Package main is the entry point for the tournament planner API server.
package main

import (
	"os"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/cmd/tp-api/app"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
)

func main() {
	defer func() {
		_ = logger.Sync()
	}()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
