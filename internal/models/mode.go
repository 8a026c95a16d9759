// ABOUTME: InteractionMode gates which input kinds are accepted and whether speech is produced
// ABOUTME: Transitions form a fully connected graph; the mode controller owns the current value
package models

import "fmt"

// InteractionMode selects how the assistant listens and answers
type InteractionMode string

const (
	// ModeHybrid accepts text and audio input and synthesizes speech
	ModeHybrid InteractionMode = "hybrid"
	// ModeVoiceOnly accepts audio input only and synthesizes speech
	ModeVoiceOnly InteractionMode = "voice_only"
	// ModeTextOnly accepts text input only and never synthesizes
	ModeTextOnly InteractionMode = "text_only"
)

// ParseMode validates a mode string from config, CLI, or the HTTP boundary
func ParseMode(s string) (InteractionMode, error) {
	switch InteractionMode(s) {
	case ModeHybrid, ModeVoiceOnly, ModeTextOnly:
		return InteractionMode(s), nil
	}
	return "", fmt.Errorf("unknown interaction mode %q (want hybrid, voice_only, or text_only)", s)
}

// Allows reports whether the mode accepts the given input kind
func (m InteractionMode) Allows(kind InputKind) bool {
	switch m {
	case ModeHybrid:
		return kind == InputText || kind == InputAudio
	case ModeVoiceOnly:
		return kind == InputAudio
	case ModeTextOnly:
		return kind == InputText
	}
	return false
}

// Synthesizes reports whether responses in this mode are spoken aloud
func (m InteractionMode) Synthesizes() bool {
	return m == ModeHybrid || m == ModeVoiceOnly
}
