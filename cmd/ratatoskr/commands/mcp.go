// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Enables LLM agents like Claude to use Ratatoskr's memory via stdio
package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ratatoskr-ai/ratatoskr/internal/charm"
	"github.com/ratatoskr-ai/ratatoskr/internal/config"
	"github.com/ratatoskr-ai/ratatoskr/internal/mcp"
	"github.com/ratatoskr-ai/ratatoskr/internal/memory"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs Ratatoskr's memory store as an MCP (Model Context Protocol) server,
enabling LLM agents like Claude to store and retrieve memories via stdio.

Configure in Claude Desktop's config file to enable memory tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  ratatoskr mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "ratatoskr": {
  #       "command": "ratatoskr",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server over the memory store alone; the
// conversation orchestrator is not involved
func runMCP(cmd *cobra.Command, args []string) error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !quiet {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	charmClient, err := charm.NewClient(&charm.Config{
		Host:     cfg.CharmHost,
		DBName:   cfg.CharmDBName,
		AutoSync: cfg.AutoSync,
	})
	if err != nil {
		return fmt.Errorf("opening memory database: %w", err)
	}

	embedder := memory.NewOpenAIEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	store := memory.NewStore(charmClient, embedder, cfg.VectorDimension)

	// Create MCP server
	srv := mcpserver.NewMCPServer(
		"Ratatoskr Memory",
		"0.1.0",
	)

	mcp.RegisterTools(srv, store, cfg.TopK)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		log.Println("Ratatoskr MCP server starting on stdio...")
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(srv)
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		if !quiet {
			log.Println("Shutdown signal received, gracefully shutting down...")
		}
		if err := charmClient.Close(); err != nil {
			log.Printf("Warning: Error closing memory database: %v", err)
		}
		if !quiet {
			log.Println("Shutdown complete")
		}
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
