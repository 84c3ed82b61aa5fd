// Package crawl tracks completed crawl sessions and defines the fetcher
// contract. Every tracker operation is parameterized by the composite
// (root URL, collection) key; there is deliberately no by-URL surface, so a
// call site cannot construct a lookup that leaks across collections.
package crawl

import (
	"context"
	"log/slog"

	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

// Page is one fetched unit of content. Fetchers hand pages to the mediator;
// the mediator is agnostic to where they came from.
type Page struct {
	URL     string
	Title   string
	Content string
	Depth   int

	// Err records a per-page fetch failure. The mediator reports such
	// pages in the batch tally instead of ingesting them, so one bad page
	// never aborts its siblings.
	Err error
}

// Fetcher obtains the pages reachable from a root URL. Implementations own
// their discovery heuristics and per-fetch timeouts; a fetch failure for one
// page must be reported per page, not by failing the whole crawl.
type Fetcher interface {
	Fetch(ctx context.Context, rootURL string) ([]Page, error)
}

// Tracker answers "has this URL already been ingested into this collection?"
// and records session summaries when a crawl completes.
type Tracker struct {
	repo   storage.CrawlRepository
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewTracker creates a new crawl session tracker.
func NewTracker(repo storage.CrawlRepository, opts ...Option) (*Tracker, error) {
	if repo == nil {
		return nil, ErrCrawlRepositoryRequired
	}

	t := &Tracker{
		repo:   repo,
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Record upserts the session record for its (RootURL, Collection) pair.
func (t *Tracker) Record(ctx context.Context, session *core.CrawlSession) error {
	if session.RootURL == "" || session.Collection == "" {
		return &core.ScopeViolationError{Op: "recording a crawl session"}
	}

	if err := t.repo.RecordSession(ctx, session); err != nil {
		return err
	}
	t.logger.Info("crawl session recorded",
		"rootUrl", session.RootURL, "collection", session.Collection,
		"sessionId", session.SessionId, "pages", session.PageCount, "chunks", session.ChunkCount)
	return nil
}

// Lookup retrieves the record for the exact (rootURL, collection) pair.
// Returns storage.ErrNotFound when no crawl has completed for that pair;
// sessions for the same URL under other collections are never consulted.
func (t *Tracker) Lookup(ctx context.Context, rootURL, collection string) (*core.CrawlSession, error) {
	if rootURL == "" || collection == "" {
		return nil, &core.ScopeViolationError{Op: "crawl session lookup"}
	}
	return t.repo.LookupSession(ctx, rootURL, collection)
}

// Forget removes the record for the exact (rootURL, collection) pair.
// Forgetting a pair that was never recorded is not an error.
func (t *Tracker) Forget(ctx context.Context, rootURL, collection string) error {
	if rootURL == "" || collection == "" {
		return &core.ScopeViolationError{Op: "crawl session deletion"}
	}
	return t.repo.DeleteSession(ctx, rootURL, collection)
}
