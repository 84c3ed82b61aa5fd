// Package ingestion coordinates the two stores. The mediator treats every
// content source the same way — a document is a document once content is
// obtained — and commits it vector side first, graph side second, so a
// document is always at least searchable even when graph enrichment lags.
package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/crawl"
	"github.com/poiesic/duograph/graph"
	"github.com/poiesic/duograph/storage"
	"github.com/poiesic/duograph/vector"
)

const defaultFetchTimeout = 30 * time.Second

// Mediator orchestrates the chunker, vector store, graph store, and crawl
// session tracker so ingest, update, delete, and recrawl behave as single
// logical operations with defined consistency guarantees.
type Mediator struct {
	docs         storage.DocumentRepository
	vectors      *vector.Store
	graphs       *graph.Store
	tracker      *crawl.Tracker
	pool         *ants.Pool
	locks        *docLocks
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Mediator.
type Option func(*Mediator) error

// WithPoolSize sets the worker pool size for batch ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(m *Mediator) error {
		if size < 1 {
			size = 1
		}
		if m.pool != nil {
			m.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		m.pool = pool
		return nil
	}
}

// WithFetchTimeout sets the crawl fetch budget.
// Default is 30 seconds.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Mediator) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		m.fetchTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mediator) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewMediator creates a new ingestion mediator.
func NewMediator(
	docs storage.DocumentRepository,
	vectors *vector.Store,
	graphs *graph.Store,
	tracker *crawl.Tracker,
	opts ...Option,
) (*Mediator, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if graphs == nil {
		return nil, ErrGraphStoreRequired
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	m := &Mediator{
		docs:         docs,
		vectors:      vectors,
		graphs:       graphs,
		tracker:      tracker,
		pool:         pool,
		locks:        newDocLocks(),
		fetchTimeout: defaultFetchTimeout,
		logger:       slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if optErr := opt(m); optErr != nil {
			m.Release()
			return nil, optErr
		}
	}

	return m, nil
}

// Release releases the batch worker pool.
// The mediator should not be used after calling Release.
func (m *Mediator) Release() {
	if m.pool != nil {
		m.pool.Release()
	}
}

// Ingest commits one unit of content into both stores. Metadata is
// validated against the collection's schema before any write; the vector
// write happens first; the graph side may partially complete, in which case
// the result reports the exact episode counts instead of failing the call.
// Content carrying crawl metadata also upserts its crawl session record.
func (m *Mediator) Ingest(ctx context.Context, content, collection, title string, metadata map[string]string) (*IngestResult, error) {
	coll, err := m.getCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if violations := coll.Schema.Validate(metadata); len(violations) > 0 {
		return nil, &core.ValidationError{Collection: collection, Violations: violations}
	}

	result, err := m.ingestDocument(ctx, content, collection, title, metadata)
	if err != nil {
		return nil, err
	}

	if result.Document.IsCrawled() {
		session := &core.CrawlSession{
			RootURL:    metadata[core.MetaCrawlRootURL],
			Collection: collection,
			SessionId:  metadata[core.MetaCrawlSessionID],
			PageCount:  1,
			ChunkCount: result.ChunkCount,
			Timestamp:  time.Now().UTC(),
		}
		if err := m.tracker.Record(ctx, session); err != nil {
			m.logger.Warn("failed to record crawl session",
				"rootUrl", session.RootURL, "collection", collection, "err", err)
		}
	}

	return result, nil
}

// ingestDocument runs the two-store write for already-validated content.
// It never records crawl sessions; batch callers record one aggregate
// session after the whole batch.
func (m *Mediator) ingestDocument(ctx context.Context, content, collection, title string, metadata map[string]string) (*IngestResult, error) {
	doc := &core.Document{
		Title:    title,
		Content:  content,
		Metadata: metadata,
	}

	// Vector side first: once this commits the document is searchable.
	doc, chunks, err := m.vectors.Store(ctx, doc, []string{collection})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.NotFoundError{Kind: "collection", Ref: collection}
		}
		return nil, err
	}

	report := m.graphs.StoreEpisodes(ctx, content, collection, doc.Id, doc.InsertedAt, doc.Provenance())
	result := &IngestResult{
		Document:       doc,
		ChunkCount:     len(chunks),
		EpisodesStored: report.EpisodesStored,
		EpisodesWanted: report.EpisodesWanted,
		EntityCount:    report.EntityCount,
		FactCount:      report.FactCount,
		GraphErrs:      report.Errs,
	}

	if result.Partial() {
		m.logger.Warn("graph write incomplete, document remains searchable",
			"documentId", doc.Id, "episodesStored", report.EpisodesStored,
			"episodesWanted", report.EpisodesWanted)
	}
	return result, nil
}

// Update replaces a document's content and metadata: all existing chunks
// and all existing episodes are regenerated under the same document ID.
func (m *Mediator) Update(ctx context.Context, docID core.ID, content string, metadata map[string]string) (*IngestResult, error) {
	m.locks.lock(docID)
	defer m.locks.unlock(docID)

	existing, err := m.docs.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.NotFoundError{Kind: "document", Ref: strconv.FormatUint(uint64(docID), 10)}
		}
		return nil, err
	}

	collections, err := m.docs.CollectionsOf(ctx, docID)
	if err != nil {
		return nil, err
	}
	for _, name := range collections {
		coll, err := m.getCollection(ctx, name)
		if err != nil {
			return nil, err
		}
		if violations := coll.Schema.Validate(metadata); len(violations) > 0 {
			return nil, &core.ValidationError{Collection: name, Violations: violations}
		}
	}

	// Drop the old graph side before rewriting either store so a crash
	// leaves "document with fewer episodes than windows", a reconcilable
	// state, never episodes pointing at stale content.
	if _, err := m.graphs.DeleteEpisodesFor(ctx, docID); err != nil {
		return nil, err
	}

	doc := &core.Document{
		Id:       docID,
		Title:    existing.Title,
		Content:  content,
		Metadata: metadata,
	}
	doc, chunks, err := m.vectors.Replace(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Document: doc, ChunkCount: len(chunks)}
	for _, name := range collections {
		report := m.graphs.StoreEpisodes(ctx, content, name, doc.Id, doc.UpdatedAt, doc.Provenance())
		result.EpisodesStored += report.EpisodesStored
		result.EpisodesWanted += report.EpisodesWanted
		result.EntityCount += report.EntityCount
		result.FactCount += report.FactCount
		result.GraphErrs = append(result.GraphErrs, report.Errs...)
	}
	return result, nil
}

// Delete removes the document, its chunks, and every episode whose
// provenance back-reference matches it. Deleting an already-deleted ID
// reports NotFoundError; callers may treat the repeat as a no-op error.
func (m *Mediator) Delete(ctx context.Context, docID core.ID) error {
	m.locks.lock(docID)
	defer m.locks.unlock(docID)

	return m.deleteLocked(ctx, docID)
}

func (m *Mediator) deleteLocked(ctx context.Context, docID core.ID) error {
	if _, err := m.docs.GetDocument(ctx, docID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &core.NotFoundError{Kind: "document", Ref: strconv.FormatUint(uint64(docID), 10)}
		}
		return err
	}

	// Graph side first: if this is interrupted the document is still
	// searchable and a later delete retry remains valid.
	if _, err := m.graphs.DeleteEpisodesFor(ctx, docID); err != nil {
		return err
	}

	if err := m.vectors.Delete(ctx, docID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &core.NotFoundError{Kind: "document", Ref: strconv.FormatUint(uint64(docID), 10)}
		}
		return err
	}
	return nil
}

func (m *Mediator) getCollection(ctx context.Context, name string) (*core.Collection, error) {
	coll, err := m.docs.GetCollection(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.NotFoundError{Kind: "collection", Ref: name}
		}
		return nil, err
	}
	return coll, nil
}
