package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/pkg/adapters/mcp"
)

const shutdownTimeout = 5 * time.Second

// NewHTTPHandler builds the HTTP API for app.
func NewHTTPHandler(app *App) http.Handler {
	return httpAdapter.NewHandler(app.Engine, app.Sessions,
		httpAdapter.WithTools(app.Engine.Registry()),
		httpAdapter.WithMetrics(app.Metrics.Handler()),
		httpAdapter.WithSystemPrompt(app.Config.Engine.SystemPrompt),
		httpAdapter.WithMaxInputSize(app.Config.Engine.MaxInputSize),
		httpAdapter.WithLogger(app.Logger),
	)
}

// Serve runs the HTTP API on addr until ctx ends.
func Serve(ctx context.Context, app *App, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting Parley Server", "address", addr, "store", app.Config.Store.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		app.Logger.Info("Shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		app.Logger.Info("Parley Server stopped gracefully")
		return nil
	}
}

// NewMCPServer builds the MCP surface for app.
func NewMCPServer(app *App) *mcp.Server {
	return mcp.NewServer(app.Engine, app.Sessions,
		mcp.WithTools(app.Engine.Registry()),
		mcp.WithSystemPrompt(app.Config.Engine.SystemPrompt),
		mcp.WithMaxInputSize(app.Config.Engine.MaxInputSize),
		mcp.WithLogger(app.Logger),
	)
}
