package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// TEIConfig holds configuration for the TEI / OpenAI-compatible
// embedding provider.
type TEIConfig struct {
	// BaseURL is the endpoint, e.g. http://localhost:8080/v1 for TEI
	// or https://api.openai.com/v1 for OpenAI.
	BaseURL string
	// Model is the embedding model name.
	Model string
	// APIKey is required for hosted APIs, optional for local TEI.
	APIKey string
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider generates embeddings over HTTP via langchaingo's
// OpenAI-compatible client, which serves both TEI and OpenAI.
type TEIProvider struct {
	embedder  *lcembeddings.EmbedderImpl
	dimension int
}

// NewTEIProvider creates a new TEI embedding provider.
func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for local TEI.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &TEIProvider{
		embedder:  embedder,
		dimension: detectDimension(cfg.Model),
	}, nil
}

// detectDimension returns the embedding dimension for a model name,
// falling back to 384 for unknown small models.
func detectDimension(model string) int {
	switch {
	case contains(model, "large"):
		return 1024
	case contains(model, "base"):
		return 768
	default:
		return 384
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *TEIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for the HTTP provider.
func (p *TEIProvider) Close() error { return nil }
