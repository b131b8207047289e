// Package vectorstore builds and serves the persistent chunk index.
//
// The index is built offline from a chunked syllabus and is read-only
// for the lifetime of a process. A rebuild writes to a temporary
// directory and atomically swaps the live handle; in-flight readers
// keep the handle they resolved. Persistence is two artifacts: the
// chromem collection directory and a sidecar chunk-metadata table keyed
// by chunk id. Both must be present and embedding-dimension-consistent,
// otherwise opening fails with ErrIndexState.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for index operations.
var (
	// ErrIndexState indicates missing or mismatched index artifacts.
	// The index must be rebuilt before retrieval can proceed.
	ErrIndexState = errors.New("index state invalid")

	// ErrEmptyChunks indicates a build was attempted with no chunks.
	ErrEmptyChunks = errors.New("no chunks to index")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some
	// models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
