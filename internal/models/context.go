// ABOUTME: ContextWindow is the assembled prompt context for one turn
// ABOUTME: Rebuilt fresh each turn from instructions, history, and retrieved memory
package models

// Message roles within a context window
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContextEntry is one {role, text} element of a context window
type ContextEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ContextWindow is the ordered prompt sent to the model for one turn:
// system instructions first, then bounded dialogue history, then retrieved
// memories, then the current user message. Not persisted.
type ContextWindow struct {
	TurnID  int64          `json:"turn_id"`
	Entries []ContextEntry `json:"entries"`
}

// Chars returns the total character count across all entries
func (w *ContextWindow) Chars() int {
	total := 0
	for _, e := range w.Entries {
		total += len(e.Text)
	}
	return total
}
