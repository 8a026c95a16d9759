// ABOUTME: Serve command exposing the orchestrator to a desktop UI
// ABOUTME: HTTP endpoints for submit/cancel/mode plus a websocket event feed
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratatoskr-ai/ratatoskr/internal/models"
	"github.com/ratatoskr-ai/ratatoskr/internal/server"
)

var (
	serveAddr string
	serveMode string
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant to a desktop UI",
		Long: `Serve the assistant over HTTP for a desktop UI.

Endpoints:
  POST /api/turns    submit a text or audio turn
  POST /api/cancel   abort the in-flight turn
  GET  /api/mode     read the interaction mode
  PUT  /api/mode     switch the interaction mode
  GET  /ws           ordered event stream (websocket)`,
		RunE: runServe,
		Example: `  # Serve on the default address
  ratatoskr serve

  # Serve voice-only on a custom port
  ratatoskr serve --addr :9000 --mode voice_only`,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides RATATOSKR_SERVE_ADDR)")
	cmd.Flags().StringVar(&serveMode, "mode", string(models.ModeHybrid), "Initial interaction mode")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	initial, err := models.ParseMode(serveMode)
	if err != nil {
		return err
	}

	a, err := buildAssistant(initial)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.ServeAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.NewServer(a.orchestrator, addr)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			log.Println("Shutdown signal received, gracefully shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: Error shutting down server: %v", err)
		}
		if !quiet {
			log.Println("Shutdown complete")
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
