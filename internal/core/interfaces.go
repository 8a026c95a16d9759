// ABOUTME: Adapter interfaces consumed by the turn pipeline and orchestrator
// ABOUTME: Concrete implementations live in internal/voice, internal/llm, internal/memory
package core

import (
	"context"

	"github.com/ratatoskr-ai/ratatoskr/internal/llm"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
	"github.com/ratatoskr-ai/ratatoskr/internal/voice"
)

// GenerationStream is a cancellable lazy sequence of model text fragments
type GenerationStream interface {
	Fragments() <-chan string
	Err() error
	Partial() []string
	Cancel()
}

// AudioStream is a cancellable lazy sequence of synthesized audio frames
type AudioStream interface {
	Frames() <-chan []byte
	Err() error
	Cancel()
}

// ModelAdapter streams completions for an assembled context window
type ModelAdapter interface {
	Generate(ctx context.Context, window *models.ContextWindow) (GenerationStream, error)
}

// VoiceIO wraps the speech-to-text and text-to-speech engines
type VoiceIO interface {
	Transcribe(ctx context.Context, turnID int64, audio []byte) (*models.Transcript, error)
	Synthesize(ctx context.Context, text string) (AudioStream, error)
}

// MemoryStore is the long-term memory surface the pipeline needs
type MemoryStore interface {
	Upsert(ctx context.Context, text string, turnID int64) (*models.MemoryRecord, error)
	Query(ctx context.Context, text string, k int) ([]models.MemorySearchResult, error)
}

// modelClient adapts *llm.Client to the ModelAdapter interface
type modelClient struct {
	client *llm.Client
}

func (m modelClient) Generate(ctx context.Context, window *models.ContextWindow) (GenerationStream, error) {
	stream, err := m.client.Generate(ctx, window)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// WrapModel exposes an llm.Client as a ModelAdapter
func WrapModel(client *llm.Client) ModelAdapter {
	return modelClient{client: client}
}

// voiceAdapter adapts *voice.Adapter to the VoiceIO interface
type voiceAdapter struct {
	adapter *voice.Adapter
}

func (v voiceAdapter) Transcribe(ctx context.Context, turnID int64, audio []byte) (*models.Transcript, error) {
	return v.adapter.Transcribe(ctx, turnID, audio)
}

func (v voiceAdapter) Synthesize(ctx context.Context, text string) (AudioStream, error) {
	stream, err := v.adapter.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// WrapVoice exposes a voice.Adapter as a VoiceIO
func WrapVoice(adapter *voice.Adapter) VoiceIO {
	return voiceAdapter{adapter: adapter}
}
