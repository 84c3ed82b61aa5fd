package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/crawl"
	"github.com/poiesic/duograph/storage"
)

// Mode selects the duplicate policy for crawl ingestion.
type Mode int

const (
	// ModeCrawl fails with DuplicateError when the (URL, collection) pair
	// already has a session record, carrying the prior session's summary.
	ModeCrawl Mode = iota

	// ModeRecrawl always replaces: the pair's prior documents are deleted
	// and the URL is crawled fresh.
	ModeRecrawl
)

// CrawlIngest fetches a root URL and ingests every page into the
// collection. Duplicate sessions for the same (URL, collection) pair are
// rejected or replaced according to mode; the same URL under a different
// collection is never consulted.
func (m *Mediator) CrawlIngest(ctx context.Context, rootURL, collection string, mode Mode, fetcher crawl.Fetcher) (*CrawlResult, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if _, err := m.getCollection(ctx, collection); err != nil {
		return nil, err
	}

	switch mode {
	case ModeRecrawl:
		recrawled, err := m.Recrawl(ctx, rootURL, collection, fetcher)
		if err != nil {
			return nil, err
		}
		return &CrawlResult{SessionId: recrawled.SessionId, Batch: recrawled.Batch}, nil

	default:
		existing, err := m.tracker.Lookup(ctx, rootURL, collection)
		if err == nil {
			return nil, &core.DuplicateError{Existing: *existing}
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return m.crawlAndIngest(ctx, rootURL, collection, fetcher)
	}
}

// Recrawl deletes exactly the documents previously crawled from rootURL
// into collection — joined through the membership relation, never a bare
// metadata scan — then crawls the URL fresh into that same collection.
// Documents for the same URL under other collections are untouched.
func (m *Mediator) Recrawl(ctx context.Context, rootURL, collection string, fetcher crawl.Fetcher) (*RecrawlResult, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if _, err := m.getCollection(ctx, collection); err != nil {
		return nil, err
	}

	ids, err := m.docs.FindByCrawlRoot(ctx, rootURL, collection)
	if err != nil {
		return nil, err
	}

	deleted := 0
	var notFound *core.NotFoundError
	for _, id := range ids {
		if err := m.Delete(ctx, id); err != nil {
			// A concurrent delete already removed it; the goal state holds.
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("deleting document %d: %w", id, err)
		}
		deleted++
	}
	m.logger.Info("recrawl deleted prior documents",
		"rootUrl", rootURL, "collection", collection, "deleted", deleted)

	result, err := m.crawlAndIngest(ctx, rootURL, collection, fetcher)
	if err != nil {
		return nil, err
	}

	return &RecrawlResult{
		DeletedCount:  deleted,
		IngestedCount: result.Batch.Succeeded,
		SessionId:     result.SessionId,
		Batch:         result.Batch,
	}, nil
}

func (m *Mediator) crawlAndIngest(ctx context.Context, rootURL, collection string, fetcher crawl.Fetcher) (*CrawlResult, error) {
	sessionID := uuid.NewString()

	fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	pages, err := fetcher.Fetch(fetchCtx, rootURL)
	cancel()
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, &core.TimeoutError{Step: "fetch", Budget: m.fetchTimeout}
		}
		return nil, fmt.Errorf("fetching %s: %w", rootURL, err)
	}

	batch := m.IngestPages(ctx, rootURL, collection, sessionID, pages)

	// Only a crawl that ingested something marks the pair as crawled;
	// a fully failed pass must not block a later crawl-mode attempt.
	if batch.Succeeded > 0 {
		session := &core.CrawlSession{
			RootURL:    rootURL,
			Collection: collection,
			SessionId:  sessionID,
			PageCount:  batch.Succeeded,
			ChunkCount: batch.ChunkCount,
			Timestamp:  time.Now().UTC(),
		}
		if err := m.tracker.Record(ctx, session); err != nil {
			return nil, err
		}
	}

	return &CrawlResult{SessionId: sessionID, Batch: batch}, nil
}

// IngestPages ingests a batch of fetched pages concurrently over the worker
// pool. Pages succeed and fail independently: a fetch failure, validation
// failure, or store failure on one page is recorded in its PageResult while
// sibling pages proceed.
func (m *Mediator) IngestPages(ctx context.Context, rootURL, collection, sessionID string, pages []crawl.Page) *BatchResult {
	batch := &BatchResult{Pages: make([]PageResult, len(pages))}

	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		err := m.pool.Submit(func() {
			defer wg.Done()
			batch.Pages[i] = m.ingestPage(ctx, rootURL, collection, sessionID, page)
		})
		if err != nil {
			wg.Done()
			batch.Pages[i] = PageResult{URL: page.URL, Err: err}
		}
	}
	wg.Wait()

	for _, pr := range batch.Pages {
		if pr.Err != nil {
			batch.Failed++
			continue
		}
		batch.Succeeded++
		batch.ChunkCount += pr.Result.ChunkCount
	}
	return batch
}

func (m *Mediator) ingestPage(ctx context.Context, rootURL, collection, sessionID string, page crawl.Page) PageResult {
	if page.Err != nil {
		return PageResult{URL: page.URL, Err: fmt.Errorf("fetch failed: %w", page.Err)}
	}

	metadata := map[string]string{
		core.MetaCrawlRootURL:   rootURL,
		core.MetaCrawlSessionID: sessionID,
		core.MetaCrawlDepth:     strconv.Itoa(page.Depth),
	}

	coll, err := m.getCollection(ctx, collection)
	if err != nil {
		return PageResult{URL: page.URL, Err: err}
	}
	if violations := coll.Schema.Validate(metadata); len(violations) > 0 {
		return PageResult{URL: page.URL, Err: &core.ValidationError{Collection: collection, Violations: violations}}
	}

	result, err := m.ingestDocument(ctx, page.Content, collection, page.Title, metadata)
	if err != nil {
		m.logger.Warn("page ingestion failed", "url", page.URL, "err", err)
		return PageResult{URL: page.URL, Err: err}
	}
	return PageResult{URL: page.URL, Result: result}
}
