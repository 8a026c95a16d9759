// ABOUTME: Root CLI command with global flags and subcommand registration
// ABOUTME: Holds the banner and the verbose/quiet persistent flags
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
)

const banner = `
██████╗  █████╗ ████████╗ █████╗ ████████╗ ██████╗ ███████╗██╗  ██╗██████╗
██╔══██╗██╔══██╗╚══██╔══╝██╔══██╗╚══██╔══╝██╔═══██╗██╔════╝██║ ██╔╝██╔══██╗
██████╔╝███████║   ██║   ███████║   ██║   ██║   ██║███████╗█████╔╝ ██████╔╝
██╔══██╗██╔══██║   ██║   ██╔══██║   ██║   ██║   ██║╚════██║██╔═██╗ ██╔══██╗
██║  ██║██║  ██║   ██║   ██║  ██║   ██║   ╚██████╔╝███████║██║  ██╗██║  ██║
╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratatoskr",
		Short: "Voice and text assistant with long-term memory",
		Long: banner + `

Ratatoskr is a desktop assistant that listens, types, remembers, and talks
back. It runs against local model servers (Ollama, whisper, TTS) and keeps
long-term memories in a charm KV store for retrieval on every turn.

Run "ratatoskr chat" for an interactive session, "ratatoskr serve" to expose
the assistant to a desktop UI, or "ratatoskr mcp" to serve the memory tools
to LLM agents over stdio.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewChatCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}
