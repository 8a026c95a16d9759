// ABOUTME: Turn represents one user-input-to-assistant-output round trip
// ABOUTME: Immutable once created; owned by the orchestrator until terminal
package models

import (
	"time"
)

// InputKind distinguishes typed text from captured audio
type InputKind string

const (
	InputText  InputKind = "text"
	InputAudio InputKind = "audio"
)

// Turn is a single round of interaction. IDs are strictly increasing and
// never reused; the orchestrator is the only assigner.
type Turn struct {
	ID        int64           `json:"id"`
	Mode      InteractionMode `json:"mode"`
	Kind      InputKind       `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Audio     []byte          `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transcript is the text derived from a turn's input: the transcription of
// audio input, or the typed text itself.
type Transcript struct {
	TurnID int64  `json:"turn_id"`
	Text   string `json:"text"`
}

// TurnResult summarizes a completed turn for history upkeep
type TurnResult struct {
	TurnID        int64
	Transcript    string
	Response      string
	PlaybackError error // non-nil when synthesis failed but the turn completed
}
