package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"castforge/internal/archive"
	"castforge/internal/config"
	"castforge/internal/metrics"
	"castforge/internal/orchestrator"
	"castforge/internal/persona"
	"castforge/internal/server"
	"castforge/internal/storage"
	"castforge/internal/store"
	"castforge/internal/support/logger"
	"castforge/internal/upstream"
)

// getApplicationOptions builds the uber-fx option set for the service.
func getApplicationOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		metrics.Module,
		upstream.Module,
		persona.Module,
		store.Module,
		storage.Module,
		archive.Module,
		orchestrator.Module,
		server.Module,
		fx.Invoke(func(*http.Server) {}),
	}
}

// main is the application entry point.
func main() {
	// fx.Run installs its own SIGINT/SIGTERM handling; this channel exists
	// only to log which signal triggered the shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
	}()

	fxApp := fx.New(getApplicationOptions()...)
	fxApp.Run()
	if err := fxApp.Err(); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}
