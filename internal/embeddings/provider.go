// Package embeddings provides embedding generation via multiple providers.
//
// Two backends are supported: FastEmbed (local ONNX models, requires
// CGO) and TEI/OpenAI-compatible HTTP endpoints via langchaingo. Both
// implement the vectorstore.Embedder interface plus Dimension, which
// the index uses to detect embedding-space mismatches.
package embeddings

import (
	"errors"
	"fmt"

	"github.com/veldtlabs/curriculumd/internal/vectorstore"
)

// Sentinel errors for embedding providers.
var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates the backend failed to produce
	// embeddings.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" or "tei".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the TEI endpoint (tei only).
	BaseURL string
	// APIKey authenticates hosted APIs (tei only).
	APIKey string
	// CacheDir caches model files (fastembed only).
	CacheDir string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
