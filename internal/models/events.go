// ABOUTME: Event stream types emitted by the orchestrator for UI consumption
// ABOUTME: Ordered per turn: TurnStarted, Partial*, then exactly one terminal event
package models

import "time"

// EventType identifies an orchestrator event
type EventType string

const (
	EventTurnStarted   EventType = "turn_started"
	EventPartialText   EventType = "partial_text"
	EventPartialAudio  EventType = "partial_audio"
	EventTurnCompleted EventType = "turn_completed"
	EventTurnFailed    EventType = "turn_failed"
)

// Event is one element of the ordered stream consumed by the UI.
// Terminal events (completed/failed) for distinct turns are emitted in
// submission order.
type Event struct {
	Type   EventType `json:"type"`
	TurnID int64     `json:"turn_id"`
	At     time.Time `json:"at"`

	// PartialText / TurnCompleted / TurnFailed
	Text string `json:"text,omitempty"`

	// PartialAudio: one synthesized frame
	Audio []byte `json:"audio,omitempty"`

	// TurnCompleted: synthesis failed but the textual answer stands
	PlaybackError string `json:"playback_error,omitempty"`

	// TurnCompleted in voice-only mode: the UI should reopen the mic
	Relisten bool `json:"relisten,omitempty"`

	// TurnFailed
	Stage   string   `json:"stage,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Cause   string   `json:"cause,omitempty"`
	Partial []string `json:"partial,omitempty"`
}
