// ABOUTME: ContextBuilder assembles the per-turn prompt context window
// ABOUTME: Fixed order: system instructions, bounded history, retrieved memories, user message
package core

import (
	"fmt"
	"strings"

	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// DefaultSystemPrompt is the assistant persona sent with every turn
const DefaultSystemPrompt = "You are a helpful AI assistant named Ratatoskr. " +
	"Answer the user's questions as best as you can, using the provided " +
	"memories from past conversations when they are relevant."

// ContextBuilder builds a fresh ContextWindow each turn. History is bounded
// by a character budget; when exceeded, the oldest entries are dropped first.
type ContextBuilder struct {
	systemPrompt  string
	historyBudget int
}

// NewContextBuilder creates a builder with the given history character budget
func NewContextBuilder(systemPrompt string, historyBudget int) *ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ContextBuilder{
		systemPrompt:  systemPrompt,
		historyBudget: historyBudget,
	}
}

// Build assembles the context window for one turn: system instructions,
// recent dialogue history (truncated oldest-first to the budget), retrieved
// memories, then the current user message.
func (b *ContextBuilder) Build(turnID int64, history []models.ContextEntry, memories []models.MemorySearchResult, userText string) *models.ContextWindow {
	window := &models.ContextWindow{TurnID: turnID}

	window.Entries = append(window.Entries, models.ContextEntry{
		Role: models.RoleSystem,
		Text: b.systemPrompt,
	})

	window.Entries = append(window.Entries, b.boundedHistory(history)...)

	if len(memories) > 0 {
		window.Entries = append(window.Entries, models.ContextEntry{
			Role: models.RoleSystem,
			Text: formatMemories(memories),
		})
	}

	window.Entries = append(window.Entries, models.ContextEntry{
		Role: models.RoleUser,
		Text: userText,
	})

	return window
}

// boundedHistory drops the oldest entries until the remainder fits the budget
func (b *ContextBuilder) boundedHistory(history []models.ContextEntry) []models.ContextEntry {
	total := 0
	for _, e := range history {
		total += len(e.Text)
	}
	start := 0
	for start < len(history) && total > b.historyBudget {
		total -= len(history[start].Text)
		start++
	}
	return history[start:]
}

// formatMemories renders retrieved records as one system section
func formatMemories(memories []models.MemorySearchResult) string {
	var sb strings.Builder
	sb.WriteString("Relevant memories from past conversations:\n")
	for i, m := range memories {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1,
			m.Record.CreatedAt.Format("2006-01-02"), m.Record.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}
