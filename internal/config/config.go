// ABOUTME: Centralized configuration for the Ratatoskr assistant
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Synthesis chunking cadences
const (
	ChunkingSentence = "sentence"
	ChunkingFull     = "full"
)

// Config holds all configuration for the assistant
type Config struct {
	// Model backend (Ollama's OpenAI-compatible endpoint)
	ModelBaseURL string
	ChatModel    string

	// Embedding backend
	EmbeddingBaseURL string
	EmbeddingModel   string
	VectorDimension  int

	// Speech backends
	WhisperBaseURL string
	TTSBaseURL     string
	TTSVoice       string

	// Charm KV settings
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	// Orchestration settings
	TopK              int
	HistoryBudget     int
	SynthesisChunking string

	// Per-adapter call timeouts
	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
	SynthesizeTimeout time.Duration
	MemoryTimeout     time.Duration

	// Retry policy for transient failures
	MaxRetries int
	RetryDelay time.Duration

	// UI server
	ServeAddr string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		ModelBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		ChatModel:         getEnv("RATATOSKR_CHAT_MODEL", "llama3.1:8b"),
		EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", "http://localhost:11434/v1"),
		EmbeddingModel:    getEnv("RATATOSKR_EMBEDDING_MODEL", "nomic-embed-text"),
		VectorDimension:   getEnvInt("VECTOR_DIMENSION", 768),
		WhisperBaseURL:    getEnv("WHISPER_BASE_URL", "http://localhost:8780/v1"),
		TTSBaseURL:        getEnv("TTS_BASE_URL", "http://localhost:8880/v1"),
		TTSVoice:          getEnv("TTS_VOICE", "alloy"),
		CharmHost:         getEnv("CHARM_HOST", "cloud.charm.sh"),
		CharmDBName:       getEnv("CHARM_DB", "ratatoskr"),
		AutoSync:          getEnvBool("CHARM_AUTO_SYNC", true),
		TopK:              getEnvInt("MEMORY_TOP_K", 3),
		HistoryBudget:     getEnvInt("HISTORY_BUDGET", 4000),
		SynthesisChunking: getEnv("SYNTHESIS_CHUNKING", ChunkingSentence),
		TranscribeTimeout: getEnvDuration("TRANSCRIBE_TIMEOUT", 30*time.Second),
		GenerateTimeout:   getEnvDuration("GENERATE_TIMEOUT", 120*time.Second),
		SynthesizeTimeout: getEnvDuration("SYNTHESIZE_TIMEOUT", 60*time.Second),
		MemoryTimeout:     getEnvDuration("MEMORY_TIMEOUT", 15*time.Second),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RetryDelay:        getEnvDuration("RETRY_DELAY", 500*time.Millisecond),
		ServeAddr:         getEnv("RATATOSKR_SERVE_ADDR", ":8787"),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("MEMORY_TOP_K must be positive, got %d", c.TopK)
	}
	if c.HistoryBudget <= 0 {
		return fmt.Errorf("HISTORY_BUDGET must be positive, got %d", c.HistoryBudget)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.SynthesisChunking != ChunkingSentence && c.SynthesisChunking != ChunkingFull {
		return fmt.Errorf("SYNTHESIS_CHUNKING must be %q or %q, got %q",
			ChunkingSentence, ChunkingFull, c.SynthesisChunking)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
