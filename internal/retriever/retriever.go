// Package retriever resolves natural language queries to syllabus
// chunks using the vector index. It layers metadata filtering on top
// of the store's similarity search: a filter that matches nothing
// falls back to an unfiltered ranking rather than returning an empty
// context, so downstream agents always receive grounding when the
// index has any content at all.
package retriever

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/vectorstore"
)

// Searcher is the subset of the vector store the retriever depends on.
type Searcher interface {
	Search(ctx context.Context, query string, k int, filters map[string]string) ([]vectorstore.Result, error)
	Len() int
}

// Filter restricts retrieval to chunks tagged with a unit number or
// topic. Zero values mean unrestricted.
type Filter struct {
	Unit  int
	Topic string
}

func (f Filter) empty() bool {
	return f.Unit == 0 && strings.TrimSpace(f.Topic) == ""
}

func (f Filter) metadata() map[string]string {
	meta := make(map[string]string)
	if f.Unit > 0 {
		meta["unit"] = strconv.Itoa(f.Unit)
	}
	if topic := strings.ToLower(strings.TrimSpace(f.Topic)); topic != "" {
		meta["topic"] = topic
	}
	return meta
}

// Retriever ranks indexed chunks against queries.
type Retriever struct {
	store  Searcher
	logger *zap.Logger
}

// New creates a Retriever over the given store.
func New(store Searcher, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, logger: logger}
}

// Retrieve returns up to topK chunks ranked by similarity to query.
// When filter matches no indexed chunk the filter is dropped and the
// full index is ranked instead; the result is empty only when the
// index itself is empty.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter Filter) ([]vectorstore.Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if r.store.Len() == 0 {
		return nil, nil
	}

	if !filter.empty() {
		results, err := r.store.Search(ctx, query, topK, filter.metadata())
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results, nil
		}
		r.logger.Debug("filter matched no chunks, falling back to unfiltered search",
			zap.Int("filter_unit", filter.Unit),
			zap.String("filter_topic", filter.Topic))
	}

	return r.store.Search(ctx, query, topK, nil)
}

// Context concatenates the retrieved chunk texts into a single prompt
// context block, in rank order.
func Context(results []vectorstore.Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = strings.TrimSpace(res.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
