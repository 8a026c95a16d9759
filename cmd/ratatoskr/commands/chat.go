// ABOUTME: Interactive chat REPL against the orchestrator
// ABOUTME: Streams partial text to the terminal; slash commands switch mode and cancel
package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

var chatMode string

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the assistant.

Responses stream to the terminal as they are generated. Each completed
exchange is summarized into long-term memory and retrieved on later turns.

Slash commands:
  /mode <hybrid|voice_only|text_only>   switch interaction mode
  /cancel                               abort the in-flight turn
  /quit                                 exit`,
		RunE: runChat,
		Example: `  # Text-only session (default for the terminal)
  ratatoskr chat

  # Session that also synthesizes speech
  ratatoskr chat --mode hybrid`,
	}

	cmd.Flags().StringVar(&chatMode, "mode", string(models.ModeTextOnly), "Initial interaction mode")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	initial, err := models.ParseMode(chatMode)
	if err != nil {
		return err
	}

	a, err := buildAssistant(initial)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	events, unsubscribe := a.orchestrator.Subscribe()
	defer unsubscribe()

	// Printer goroutine: renders the event stream and reports terminal
	// events back so the prompt reappears only after the turn settles
	terminals := make(chan int64, 16)
	go func() {
		for event := range events {
			switch event.Type {
			case models.EventPartialText:
				fmt.Fprint(out, event.Text)
			case models.EventPartialAudio:
				// No playback device in the terminal; frames are dropped
			case models.EventTurnCompleted:
				fmt.Fprintln(out)
				if event.PlaybackError != "" {
					fmt.Fprintf(out, "(speech unavailable: %s)\n", event.PlaybackError)
				}
				terminals <- event.TurnID
			case models.EventTurnFailed:
				fmt.Fprintf(out, "\nTurn failed (%s during %s): %s\n", event.Kind, event.Stage, event.Cause)
				if len(event.Partial) > 0 {
					fmt.Fprintf(out, "Partial response: %s\n", strings.Join(event.Partial, ""))
				}
				terminals <- event.TurnID
			}
		}
	}()

	if !quiet {
		fmt.Fprintf(out, "Ratatoskr ready (%s mode). Type /quit to exit.\n", a.orchestrator.GetMode())
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := runSlashCommand(a, out, line); done {
				return nil
			}
			continue
		}

		turn, err := a.orchestrator.SubmitText(line)
		if err != nil {
			fmt.Fprintf(out, "Rejected: %v\n", err)
			continue
		}

		// Block until this turn's terminal event has been printed
		for turnID := range terminals {
			if turnID == turn.ID {
				break
			}
		}
	}

	return scanner.Err()
}

// runSlashCommand handles /mode, /cancel, and /quit; returns true to exit
func runSlashCommand(a *assistant, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/cancel":
		if a.orchestrator.CancelCurrent() {
			fmt.Fprintln(out, "Cancelled.")
		} else {
			fmt.Fprintln(out, "Nothing to cancel.")
		}
	case "/mode":
		if len(fields) < 2 {
			fmt.Fprintf(out, "Current mode: %s\n", a.orchestrator.GetMode())
			return false
		}
		m, err := models.ParseMode(fields[1])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return false
		}
		a.orchestrator.SetMode(m)
		fmt.Fprintf(out, "Mode set to %s\n", m)
	default:
		fmt.Fprintf(out, "Unknown command %s\n", fields[0])
	}
	return false
}
