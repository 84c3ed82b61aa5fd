package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/duograph/ai"
	"github.com/poiesic/duograph/chunker"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

const defaultEmbedTimeout = 30 * time.Second

// Store is the vector-similarity side of the engine: it chunks document
// content, generates embeddings, persists documents with their chunks, and
// executes filtered similarity search. It never touches the graph side.
type Store struct {
	docs         storage.DocumentRepository
	embedder     ai.Embedder
	chunker      *chunker.Chunker
	embedTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithChunker sets a custom chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(s *Store) error {
		if c == nil {
			return errors.New("chunker cannot be nil")
		}
		s.chunker = c
		return nil
	}
}

// WithEmbedTimeout sets the per-call embedding budget.
// Default is 30 seconds.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Store) error {
		if d <= 0 {
			return errors.New("embed timeout must be positive")
		}
		s.embedTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a new vector store.
func NewStore(docs storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Store, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Store{
		docs:         docs,
		embedder:     embedder,
		chunker:      chunker.New(chunker.Config{}),
		embedTimeout: defaultEmbedTimeout,
		logger:       slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Store chunks and embeds the document content, then persists the document,
// its chunks, and its membership in the named collections as one write.
// Returns the stored document and its chunks.
func (s *Store) Store(ctx context.Context, doc *core.Document, collections []string) (*core.Document, []*core.Chunk, error) {
	chunks, err := s.buildChunks(ctx, doc.Content)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.docs.AddDocument(ctx, doc, chunks, collections)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("document stored",
		"documentId", stored.Id, "chunks", len(chunks), "collections", collections)
	return stored, chunks, nil
}

// Replace re-chunks and re-embeds the document content and overwrites the
// existing document row and chunk set. Collection membership is preserved.
func (s *Store) Replace(ctx context.Context, doc *core.Document) (*core.Document, []*core.Chunk, error) {
	chunks, err := s.buildChunks(ctx, doc.Content)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.docs.ReplaceDocument(ctx, doc, chunks)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("document replaced", "documentId", stored.Id, "chunks", len(chunks))
	return stored, chunks, nil
}

// Delete removes the document, its chunks, and its membership rows.
// Returns storage.ErrNotFound if the document does not exist.
func (s *Store) Delete(ctx context.Context, id core.ID) error {
	return s.docs.DeleteDocument(ctx, id)
}

// Search embeds the query and returns chunks ranked by similarity, subject
// to the collection scope, metadata filter, threshold, and limit in opts.
// An empty result is not an error.
func (s *Store) Search(ctx context.Context, query string, opts storage.SearchOptions) ([]*core.ChunkMatch, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vector, err := s.embedder.EmbedText(embedCtx, query)
	if err != nil {
		if errors.Is(embedCtx.Err(), context.DeadlineExceeded) {
			return nil, &core.TimeoutError{Step: "embed", Budget: s.embedTimeout}
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return s.docs.FindSimilar(ctx, vector, opts)
}

// buildChunks splits content into overlapping spans and embeds them in one
// batch call under the embed budget.
func (s *Store) buildChunks(ctx context.Context, content string) ([]*core.Chunk, error) {
	spans := s.chunker.Split(content)
	if len(spans) == 0 {
		return nil, nil
	}

	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Content
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vectors, err := s.embedder.EmbedTexts(embedCtx, texts)
	if err != nil {
		if errors.Is(embedCtx.Err(), context.DeadlineExceeded) {
			return nil, &core.TimeoutError{Step: "embed", Budget: s.embedTimeout}
		}
		return nil, fmt.Errorf("embedding %d chunks: %w", len(texts), err)
	}
	if len(vectors) != len(spans) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(spans))
	}

	chunks := make([]*core.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = &core.Chunk{
			Seq:     i,
			Start:   span.Start,
			End:     span.End,
			Content: span.Content,
			Vector:  vectors[i],
		}
	}
	return chunks, nil
}
