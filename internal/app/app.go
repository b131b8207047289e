// Package app wires the curriculumd dependency graph. Both the daemon
// and the CLI build the same graph from the same configuration; this
// package keeps them from drifting apart.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/agent"
	"github.com/veldtlabs/curriculumd/internal/compliance"
	"github.com/veldtlabs/curriculumd/internal/config"
	"github.com/veldtlabs/curriculumd/internal/embeddings"
	"github.com/veldtlabs/curriculumd/internal/llm"
	"github.com/veldtlabs/curriculumd/internal/retriever"
	"github.com/veldtlabs/curriculumd/internal/rules"
	"github.com/veldtlabs/curriculumd/internal/server"
	"github.com/veldtlabs/curriculumd/internal/vectorstore"
	"github.com/veldtlabs/curriculumd/internal/workflow"
)

// App is the assembled dependency graph.
type App struct {
	Config       *config.Config
	Tables       *rules.Tables
	Embedder     embeddings.Provider
	Store        *vectorstore.Store
	Retriever    *retriever.Retriever
	Orchestrator *workflow.Orchestrator
	Metrics      *server.Metrics
}

// New builds the full graph from configuration. The index is opened
// from disk if present; a fresh directory starts empty and serves no
// retrievals until the first rebuild.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	tables, err := rules.Load(rules.Paths{
		BloomTaxonomy: cfg.Rules.BloomTaxonomy,
		ExamPattern:   cfg.Rules.ExamPattern,
		Rubrics:       cfg.Rules.Rubrics,
	})
	if err != nil {
		return nil, fmt.Errorf("loading rule tables: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	store, err := vectorstore.Open(vectorstore.Config{
		Path:       cfg.RAG.IndexPath,
		VectorSize: embedder.Dimension(),
	}, embedder, logger)
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("opening index: %w", err)
	}

	metrics := server.NewMetrics()

	client, err := llm.NewOpenAIClient(llm.Config{
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
		MaxRetries:   cfg.LLM.MaxRetries,
		Timeout:      cfg.LLM.Timeout,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		RateLimit:    cfg.LLM.RateLimit,
		RetryCounter: metrics.ProviderRetries,
	})
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	ret := retriever.New(store, logger)
	expectedHours := cfg.Workflow.AcademicWeeks * cfg.Workflow.HoursPerWeek

	orchestrator := workflow.New(
		agent.NewIntentAgent(client, logger),
		agent.NewSyllabusAgent(client, logger, expectedHours),
		agent.NewLessonPlanAgent(client, logger),
		agent.NewAssessmentAgent(client, logger, tables),
		agent.NewEvaluationAgent(client, logger, tables),
		ret,
		tables,
		workflow.Config{
			RegenBudget:   cfg.Workflow.RegenBudget,
			AcademicWeeks: cfg.Workflow.AcademicWeeks,
			HoursPerWeek:  cfg.Workflow.HoursPerWeek,
			TopK:          cfg.RAG.TopK,
			Gate: compliance.Options{
				BloomTolerance:    cfg.Workflow.BloomTolerance,
				CoverageThreshold: cfg.Workflow.CoverageThreshold,
			},
			ResultsLog: cfg.Workflow.ResultsLog,
		},
		logger,
	)

	return &App{
		Config:       cfg,
		Tables:       tables,
		Embedder:     embedder,
		Store:        store,
		Retriever:    ret,
		Orchestrator: orchestrator,
		Metrics:      metrics,
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
}
