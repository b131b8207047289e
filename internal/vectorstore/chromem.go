package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/chunk"
)

const (
	// storeDirName is the chromem collection directory inside the index path.
	storeDirName = "store"
	// manifestFileName is the sidecar chunk-metadata table.
	manifestFileName = "chunks.json"

	collectionName = "syllabus"
)

// Config holds configuration for the chunk index.
type Config struct {
	// Path is the directory holding both index artifacts.
	Path string

	// VectorSize is the embedding dimension the configured embedder
	// produces. A persisted index with a different dimension cannot
	// be served and must be rebuilt.
	VectorSize int

	// Compress enables gzip compression for stored vectors.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/curriculumd/index"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrIndexState)
	}
	return nil
}

// manifest is the persisted chunk-metadata table plus the parameters the
// index was built with.
type manifest struct {
	Dimension int           `json:"dimension"`
	Count     int           `json:"count"`
	Chunks    []chunk.Chunk `json:"chunks"`
}

// index is one immutable generation of the chunk index.
type index struct {
	collection *chromem.Collection
	chunks     []chunk.Chunk
	byID       map[string]int
}

// Store serves similarity searches over the persisted chunk index.
//
// The live index generation is swapped atomically on rebuild; readers
// holding the previous generation finish against it undisturbed.
type Store struct {
	config   Config
	embedder Embedder
	logger   *zap.Logger

	mu  sync.RWMutex
	idx *index
}

// Result is a retrieved chunk with its similarity score.
type Result struct {
	Chunk chunk.Chunk
	Score float32
}

// New creates a Store. The index is not opened; call Open to serve an
// existing index or Rebuild to create one.
func New(config Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrIndexState)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	expanded, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding index path: %w", err)
	}
	config.Path = expanded

	return &Store{config: config, embedder: embedder, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Open loads the persisted index artifacts and validates their
// consistency. Both the vector store and the metadata table must be
// present and the persisted dimension must match the configured
// embedding model, otherwise Open fails with ErrIndexState and the
// index must be rebuilt.
func Open(config Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	s, err := New(config, embedder, logger)
	if err != nil {
		return nil, err
	}

	storeDir := filepath.Join(s.config.Path, storeDirName)
	manifestPath := filepath.Join(s.config.Path, manifestFileName)

	storeExists := dirExists(storeDir)
	manifestExists := fileExists(manifestPath)

	switch {
	case !storeExists && !manifestExists:
		// Fresh deployment: empty index until the first rebuild.
		s.logger.Info("no persisted index found, starting empty",
			zap.String("path", s.config.Path))
		return s, nil
	case storeExists != manifestExists:
		return nil, fmt.Errorf("%w: index artifacts incomplete at %s (store=%v metadata=%v), rebuild required",
			ErrIndexState, s.config.Path, storeExists, manifestExists)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata table: %v", ErrIndexState, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata table: %v", ErrIndexState, err)
	}

	if m.Dimension != s.config.VectorSize {
		return nil, fmt.Errorf("%w: persisted dimension %d does not match configured embedding model dimension %d, rebuild required",
			ErrIndexState, m.Dimension, s.config.VectorSize)
	}

	db, err := chromem.NewPersistentDB(storeDir, s.config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening vector store: %v", ErrIndexState, err)
	}
	collection := db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		return nil, fmt.Errorf("%w: collection missing from vector store, rebuild required", ErrIndexState)
	}
	if collection.Count() != m.Count {
		return nil, fmt.Errorf("%w: vector store has %d chunks but metadata table has %d, rebuild required",
			ErrIndexState, collection.Count(), m.Count)
	}

	s.idx = newIndex(collection, m.Chunks)
	s.logger.Info("index opened",
		zap.String("path", s.config.Path),
		zap.Int("chunks", len(m.Chunks)),
		zap.Int("dimension", m.Dimension),
	)
	return s, nil
}

// countMatching counts chunks whose metadata satisfies every filter.
func (i *index) countMatching(filters map[string]string) int {
	if len(filters) == 0 {
		return len(i.chunks)
	}
	count := 0
	for _, c := range i.chunks {
		meta := chunkMetadata(c)
		ok := true
		for k, v := range filters {
			if meta[k] != v {
				ok = false
				break
			}
		}
		if ok {
			count++
		}
	}
	return count
}

func newIndex(collection *chromem.Collection, chunks []chunk.Chunk) *index {
	byID := make(map[string]int, len(chunks))
	for i, c := range chunks {
		byID[c.ID] = i
	}
	return &index{collection: collection, chunks: chunks, byID: byID}
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := s.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return Normalize(vec), nil
	}
}

// Rebuild embeds the given chunks and replaces the persisted index.
// The new generation is written to a temporary directory and swapped in
// atomically; rebuilding is the only supported mutation.
func (s *Store) Rebuild(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	for i := range embeddings {
		if len(embeddings[i]) != s.config.VectorSize {
			return fmt.Errorf("%w: embedder produced dimension %d, configured %d",
				ErrIndexState, len(embeddings[i]), s.config.VectorSize)
		}
		embeddings[i] = Normalize(embeddings[i])
		chunks[i].Embedding = embeddings[i]
	}

	if err := os.MkdirAll(filepath.Dir(s.config.Path), 0o755); err != nil {
		return fmt.Errorf("creating index parent directory: %w", err)
	}
	tmpDir, err := os.MkdirTemp(filepath.Dir(s.config.Path), ".index-build-*")
	if err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := chromem.NewPersistentDB(filepath.Join(tmpDir, storeDirName), s.config.Compress)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  chunkMetadata(c),
			Embedding: embeddings[i],
		}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding chunks: %w", err)
	}

	m := manifest{Dimension: s.config.VectorSize, Count: len(chunks), Chunks: chunks}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata table: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, manifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata table: %w", err)
	}

	if err := s.swapIn(tmpDir, collection, chunks); err != nil {
		return err
	}

	s.logger.Info("index rebuilt",
		zap.String("path", s.config.Path),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", s.config.VectorSize),
	)
	return nil
}

// swapIn replaces the persisted artifacts and the live handle. Readers
// that already resolved the previous generation keep using it.
func (s *Store) swapIn(tmpDir string, collection *chromem.Collection, chunks []chunk.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldDir := s.config.Path + ".old"
	_ = os.RemoveAll(oldDir)
	if dirExists(s.config.Path) {
		if err := os.Rename(s.config.Path, oldDir); err != nil {
			return fmt.Errorf("retiring previous index: %w", err)
		}
	}
	if err := os.Rename(tmpDir, s.config.Path); err != nil {
		// Best effort restore of the previous generation.
		_ = os.Rename(oldDir, s.config.Path)
		return fmt.Errorf("activating new index: %w", err)
	}
	_ = os.RemoveAll(oldDir)

	s.idx = newIndex(collection, chunks)
	return nil
}

func chunkMetadata(c chunk.Chunk) map[string]string {
	meta := map[string]string{
		"seq":        strconv.Itoa(c.Seq),
		"source_ref": c.SourceRef,
	}
	if c.Unit != 0 {
		meta["unit"] = strconv.Itoa(c.Unit)
	}
	if c.Topic != "" {
		meta["topic"] = strings.ToLower(strings.TrimSpace(c.Topic))
	}
	return meta
}

// Len returns the number of chunks in the live index.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return 0
	}
	return len(s.idx.chunks)
}

// Search ranks all indexed chunks against the query and returns the top
// k, optionally restricted to chunks whose metadata matches filters.
// Ties in similarity break by chunk insertion order, so repeated calls
// against an unchanged index return identical results. An empty result
// with a nil error means the index (or the filtered view) is empty.
func (s *Store) Search(ctx context.Context, query string, k int, filters map[string]string) ([]Result, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()

	if idx == nil || len(idx.chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	// chromem requires nResults <= the number of documents matching
	// the where clause, so size the fetch from the metadata table.
	matching := idx.countMatching(filters)
	if matching == 0 {
		// Empty filtered view; the caller decides whether to fall
		// back to an unfiltered ranking.
		return nil, nil
	}
	fetch := k
	if fetch > matching {
		fetch = matching
	}

	raw, err := idx.collection.Query(ctx, query, fetch, filters, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		i, ok := idx.byID[r.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: idx.chunks[i], Score: r.Similarity})
	}

	// Deterministic ordering: similarity desc, insertion order asc.
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Chunk.Seq < results[b].Chunk.Seq
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
