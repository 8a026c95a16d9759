// ABOUTME: Shared assistant wiring for the chat and serve commands
// ABOUTME: Builds adapters, memory store, pipeline, and orchestrator from config
package commands

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/ratatoskr-ai/ratatoskr/internal/charm"
	"github.com/ratatoskr-ai/ratatoskr/internal/config"
	"github.com/ratatoskr-ai/ratatoskr/internal/core"
	"github.com/ratatoskr-ai/ratatoskr/internal/llm"
	"github.com/ratatoskr-ai/ratatoskr/internal/memory"
	"github.com/ratatoskr-ai/ratatoskr/internal/mode"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
	"github.com/ratatoskr-ai/ratatoskr/internal/voice"
)

// assistant bundles the running orchestrator with the resources it owns
type assistant struct {
	cfg          *config.Config
	charm        *charm.Client
	orchestrator *core.Orchestrator
}

// buildAssistant loads configuration, wires all adapters, and starts the
// orchestrator in the given initial mode
func buildAssistant(initialMode models.InteractionMode) (*assistant, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && verbose {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	charmClient, err := charm.NewClient(&charm.Config{
		Host:     cfg.CharmHost,
		DBName:   cfg.CharmDBName,
		AutoSync: cfg.AutoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}

	embedder := memory.NewOpenAIEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	store := memory.NewStore(charmClient, embedder, cfg.VectorDimension)

	modelClient := llm.NewClient(cfg.ModelBaseURL, cfg.ChatModel)
	voiceAdapter := voice.NewAdapter(cfg.WhisperBaseURL, cfg.TTSBaseURL, cfg.TTSVoice)

	builder := core.NewContextBuilder(core.DefaultSystemPrompt, cfg.HistoryBudget)
	pipeline := core.NewPipeline(
		core.WrapVoice(voiceAdapter),
		core.WrapModel(modelClient),
		store,
		builder,
		core.PipelineConfig{
			TopK:              cfg.TopK,
			SynthesisChunking: cfg.SynthesisChunking,
			TranscribeTimeout: cfg.TranscribeTimeout,
			GenerateTimeout:   cfg.GenerateTimeout,
			SynthesizeTimeout: cfg.SynthesizeTimeout,
			MemoryTimeout:     cfg.MemoryTimeout,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
		},
	)

	orchestrator := core.NewOrchestrator(mode.NewController(initialMode), pipeline)
	orchestrator.Start()

	if verbose {
		log.Printf("[CLI] Assistant started in %s mode (model %s, top-k %d)",
			initialMode, cfg.ChatModel, cfg.TopK)
	}

	return &assistant{
		cfg:          cfg,
		charm:        charmClient,
		orchestrator: orchestrator,
	}, nil
}

// Close drains the orchestrator and releases the memory database
func (a *assistant) Close() {
	a.orchestrator.Close()
	if err := a.charm.Close(); err != nil {
		log.Printf("[CLI] Error closing memory database: %v", err)
	}
}
