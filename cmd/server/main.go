// Package main provides the entry point for the CineShelf server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/di"
	"github.com/cineshelfapp/cineshelf/internal/logger"
)

func main() {
	injector := di.NewServerContainer()

	if err := di.BootstrapServer(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Handles shut down in reverse dependency order: the HTTP server stops accepting
	// requests before the repository, the index and the database close.
	if report := injector.Shutdown(); !report.Succeed {
		log.Error("Shutdown error", "error", report)
	}

	log.Info("Server stopped")
}
