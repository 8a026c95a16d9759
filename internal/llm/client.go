// ABOUTME: Model adapter streaming chat completions from a local LLM server
// ABOUTME: Enforces at-most-one active generation and preserves partial output on failure
package llm

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// DefaultChatModel matches the local Ollama model the assistant ships against
const DefaultChatModel = "llama3.1:8b"

// Client wraps a local LLM server behind an OpenAI-compatible endpoint
// (Ollama's /v1). At most one generation may be active at a time; a second
// Generate call while one is in flight is rejected rather than interleaved.
type Client struct {
	client     *openai.Client
	model      string
	generating atomic.Bool
}

// NewClient creates a model adapter against the given base URL and model.
// Local servers ignore the API key but the client requires a non-empty one.
func NewClient(baseURL, model string) *Client {
	cfg := openai.DefaultConfig("local")
	cfg.BaseURL = baseURL
	if model == "" {
		model = DefaultChatModel
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// GenerationStream is a lazy, finite, non-restartable sequence of text
// fragments. Fragments closes on completion, failure, or cancellation;
// Err and Partial are valid once the channel is closed.
type GenerationStream struct {
	fragments chan string
	cancel    context.CancelFunc

	mu      sync.Mutex
	partial []string
	err     error
}

// Fragments returns the fragment channel; closed at stream end
func (s *GenerationStream) Fragments() <-chan string {
	return s.fragments
}

// Err returns the terminal failure, or nil after clean completion
func (s *GenerationStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Partial returns all fragments produced so far, failure or not
func (s *GenerationStream) Partial() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.partial))
	copy(out, s.partial)
	return out
}

// Cancel aborts the stream; the underlying engine call is released
func (s *GenerationStream) Cancel() {
	s.cancel()
}

func (s *GenerationStream) append(fragment string) {
	s.mu.Lock()
	s.partial = append(s.partial, fragment)
	s.mu.Unlock()
}

func (s *GenerationStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Generate starts a streaming completion for the given context window.
// Fragments are delivered as they arrive. A mid-stream engine failure
// surfaces as a ModelFailure carrying the fragments already produced.
func (c *Client) Generate(ctx context.Context, window *models.ContextWindow) (*GenerationStream, error) {
	if !c.generating.CompareAndSwap(false, true) {
		return nil, errs.New(errs.KindConcurrentGeneration,
			"a generation is already in flight for this conversation", nil)
	}

	ctx, cancel := context.WithCancel(ctx)

	upstream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: buildMessages(window),
		Stream:   true,
	})
	if err != nil {
		cancel()
		c.generating.Store(false)
		if e := errs.FromContext(ctx, "generation"); e != nil {
			return nil, e
		}
		return nil, errs.New(errs.KindModelFailure, "starting completion stream", err)
	}

	gs := &GenerationStream{
		fragments: make(chan string),
		cancel:    cancel,
	}

	go c.pump(ctx, upstream, gs)
	return gs, nil
}

// pump forwards upstream deltas to the fragment channel until completion,
// failure, or cancellation
func (c *Client) pump(ctx context.Context, upstream *openai.ChatCompletionStream, gs *GenerationStream) {
	defer func() {
		upstream.Close()
		close(gs.fragments)
		gs.cancel()
		c.generating.Store(false)
	}()

	for {
		resp, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if e := errs.FromContext(ctx, "generation"); e != nil {
				e.Partial = gs.Partial()
				gs.fail(e)
				return
			}
			gs.fail(&errs.Error{
				Kind:    errs.KindModelFailure,
				Message: "model stream failed",
				Err:     err,
				Partial: gs.Partial(),
			})
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}

		fragment := resp.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		gs.append(fragment)

		select {
		case gs.fragments <- fragment:
		case <-ctx.Done():
			e := errs.FromContext(ctx, "generation")
			e.Partial = gs.Partial()
			gs.fail(e)
			return
		}
	}
}

// buildMessages converts a context window into chat messages
func buildMessages(window *models.ContextWindow) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(window.Entries))
	for _, entry := range window.Entries {
		role := openai.ChatMessageRoleUser
		switch entry.Role {
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: entry.Text,
		})
	}
	return messages
}
