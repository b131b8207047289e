// Package config provides configuration loading for curriculumd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Invalid retrieval or embedding settings are rejected here,
// before any request is processed.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/veldtlabs/curriculumd/internal/logging"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete curriculumd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	RAG       RAGConfig       `koanf:"rag"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Rules     RulesConfig     `koanf:"rules"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RAGConfig holds chunking and retrieval configuration.
type RAGConfig struct {
	// ChunkSize is the chunk window size in characters.
	ChunkSize int `koanf:"chunk_size"`
	// ChunkOverlap is the number of characters shared between
	// consecutive chunks. Must be smaller than ChunkSize.
	ChunkOverlap int `koanf:"chunk_overlap"`
	// TopK is the default number of chunks retrieved per query.
	TopK int `koanf:"top_k"`
	// IndexPath is the directory holding the persisted index.
	IndexPath string `koanf:"index_path"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "fastembed" or "tei".
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// CacheDir caches downloaded model files (fastembed only).
	CacheDir string `koanf:"cache_dir"`
	// BaseURL is the TEI or OpenAI-compatible endpoint (tei only).
	BaseURL string `koanf:"base_url"`
	// APIKey authenticates against hosted embedding APIs (tei only).
	APIKey string `koanf:"api_key"`
}

// LLMConfig holds generation provider configuration.
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible chat completions endpoint.
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
	// MaxRetries bounds transient-failure retries per call.
	MaxRetries  int           `koanf:"max_retries"`
	Timeout     time.Duration `koanf:"timeout"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64 `koanf:"rate_limit"`
}

// WorkflowConfig holds orchestration configuration.
type WorkflowConfig struct {
	// RegenBudget is the number of regeneration attempts allowed per
	// request after a compliance failure.
	RegenBudget int `koanf:"regen_budget"`
	// AcademicWeeks is the default semester length.
	AcademicWeeks int `koanf:"academic_weeks"`
	// HoursPerWeek is the default weekly teaching load.
	HoursPerWeek int `koanf:"hours_per_week"`
	// BloomTolerance is the per-level deviation allowed between the
	// requested and empirical Bloom distributions.
	BloomTolerance float64 `koanf:"bloom_tolerance"`
	// CoverageThreshold is the minimum fraction of syllabus topics a
	// lesson plan should schedule before a coverage issue is raised.
	CoverageThreshold float64 `koanf:"coverage_threshold"`
	// ResultsLog is the append-only file workflow envelopes are
	// written to. Empty disables result logging.
	ResultsLog string `koanf:"results_log"`
}

// RulesConfig points at the optional rule-table files.
type RulesConfig struct {
	BloomTaxonomy string `koanf:"bloom_taxonomy"`
	ExamPattern   string `koanf:"exam_pattern"`
	Rubrics       string `koanf:"rubrics"`
}

// NewDefaultConfig returns a configuration with working defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8740,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.NewDefaultConfig(),
		RAG: RAGConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         3,
			IndexPath:    "~/.local/share/curriculumd/index",
		},
		Embedding: EmbeddingConfig{
			Provider: "fastembed",
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			MaxRetries:  3,
			Timeout:     60 * time.Second,
			Temperature: 0.3,
			MaxTokens:   2048,
			RateLimit:   50.0 / 60.0,
		},
		Workflow: WorkflowConfig{
			RegenBudget:       2,
			AcademicWeeks:     16,
			HoursPerWeek:      3,
			BloomTolerance:    0.15,
			CoverageThreshold: 0.7,
			ResultsLog:        "",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, chunk size %d)",
			ErrInvalidConfig, c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	switch c.Embedding.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model required", ErrInvalidConfig)
	}
	if c.Embedding.Provider == "tei" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("%w: embedding base_url required for tei provider", ErrInvalidConfig)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("%w: llm base_url required", ErrInvalidConfig)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm model required", ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: llm max_retries must be non-negative", ErrInvalidConfig)
	}
	if c.Workflow.RegenBudget < 0 {
		return fmt.Errorf("%w: regen budget must be non-negative", ErrInvalidConfig)
	}
	if c.Workflow.AcademicWeeks <= 0 || c.Workflow.HoursPerWeek <= 0 {
		return fmt.Errorf("%w: academic calendar must be positive", ErrInvalidConfig)
	}
	if c.Workflow.BloomTolerance < 0 || c.Workflow.BloomTolerance > 1 {
		return fmt.Errorf("%w: bloom tolerance must be in [0,1]", ErrInvalidConfig)
	}
	if c.Workflow.CoverageThreshold < 0 || c.Workflow.CoverageThreshold > 1 {
		return fmt.Errorf("%w: coverage threshold must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}
