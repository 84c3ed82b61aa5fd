package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/duograph/ai"
	"github.com/poiesic/duograph/ai/mock"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/crawl"
	"github.com/poiesic/duograph/graph"
	"github.com/poiesic/duograph/storage"
	"github.com/poiesic/duograph/storage/badger"
	"github.com/poiesic/duograph/vector"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	mediator  *Mediator
	docs      storage.DocumentRepository
	graphs    storage.GraphRepository
	tracker   *crawl.Tracker
	extractor *mock.MockFactExtractor
	embedder  *mock.MockEmbedder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	docRepo, graphRepo, crawlRepo, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() })

	embedder := mock.NewMockEmbedder()
	extractor := mock.NewMockFactExtractor()

	vectors, err := vector.NewStore(docRepo, embedder)
	require.NoError(t, err)

	graphs, err := graph.NewStore(graphRepo, extractor,
		graph.WithWindowBytes(256),
		graph.WithRateLimit(1000))
	require.NoError(t, err)

	tracker, err := crawl.NewTracker(crawlRepo)
	require.NoError(t, err)

	mediator, err := NewMediator(docRepo, vectors, graphs, tracker, WithPoolSize(4))
	require.NoError(t, err)
	t.Cleanup(mediator.Release)

	return &testEnv{
		mediator:  mediator,
		docs:      docRepo,
		graphs:    graphRepo,
		tracker:   tracker,
		extractor: extractor,
		embedder:  embedder,
	}
}

func (e *testEnv) createCollection(t *testing.T, name string, schema core.Schema) {
	t.Helper()
	_, err := e.docs.CreateCollection(context.Background(), &core.Collection{Name: name, Schema: schema})
	require.NoError(t, err)
}

// stubFetcher hands back a fixed page set, like a crawler that already ran.
type stubFetcher struct {
	pages []crawl.Page
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, rootURL string) ([]crawl.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func TestIngestUnknownCollection(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.mediator.Ingest(context.Background(), "content", "missing", "title", nil)
	var notFound *core.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "collection", notFound.Kind)
}

func TestIngestValidatesMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "docs", core.Schema{
		Fields: map[string]core.FieldSpec{
			"lang": {Kind: core.FieldString, Required: true},
		},
	})

	_, err := env.mediator.Ingest(context.Background(), "content", "docs", "title", nil)
	var validation *core.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Len(t, validation.Violations, 1)

	// Nothing was written
	count, err := env.docs.CountDocuments(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIngestCommitsBothStores(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "docs", core.Schema{})
	ctx := context.Background()

	result, err := env.mediator.Ingest(ctx, "gophers build concurrent pipelines", "docs", "pipelines", map[string]string{"lang": "en"})
	require.NoError(t, err)
	require.False(t, result.Partial())
	require.NotZero(t, result.Document.Id)
	require.Greater(t, result.ChunkCount, 0)
	require.Equal(t, 1, result.EpisodesStored)

	episodes, err := env.graphs.EpisodesByDocument(ctx, result.Document.Id)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, "docs", episodes[0].GroupId)
	require.Contains(t, episodes[0].Description, "pipelines")
	require.Contains(t, episodes[0].Description, "lang=en")

	// No crawl metadata, so no session was recorded
	_, err = env.tracker.Lookup(ctx, "https://anything", "docs")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIngestPartialSuccessVisibility(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "docs", core.Schema{})
	ctx := context.Background()

	env.extractor.ExtractFunc = func(ctx context.Context, text, groupID string, referenceTime time.Time) (*ai.Extraction, error) {
		return nil, errors.New("graph store unavailable")
	}

	result, err := env.mediator.Ingest(ctx, "searchable but unenriched", "docs", "t", nil)
	require.NoError(t, err, "partial success is a result, not an error")
	require.True(t, result.Partial())
	require.Equal(t, 0, result.EpisodesStored)
	require.Equal(t, 1, result.EpisodesWanted)
	require.Greater(t, result.ChunkCount, 0)

	failure := result.Failure()
	require.NotNil(t, failure)
	require.Equal(t, result.Document.Id, failure.DocumentId)
	require.Contains(t, failure.Error(), "0/1 episodes stored")

	// The vector write stands: the document is searchable
	matches, err := env.mediator.vectors.Search(ctx, "searchable but unenriched", storage.SearchOptions{Collection: "docs"})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, result.Document.Id, matches[0].Document.Id)

	episodes, err := env.graphs.EpisodesByDocument(ctx, result.Document.Id)
	require.NoError(t, err)
	require.Empty(t, episodes)
}

func TestUpdateRegeneratesBothSides(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "docs", core.Schema{})
	ctx := context.Background()

	result, err := env.mediator.Ingest(ctx, "original content about databases", "docs", "t", nil)
	require.NoError(t, err)
	docID := result.Document.Id

	updated, err := env.mediator.Update(ctx, docID, "revised content about storage engines", map[string]string{"rev": "2"})
	require.NoError(t, err)
	require.Equal(t, docID, updated.Document.Id)
	require.Equal(t, 1, updated.EpisodesStored)

	doc, err := env.docs.GetDocument(ctx, docID)
	require.NoError(t, err)
	require.Equal(t, "revised content about storage engines", doc.Content)
	require.Equal(t, "2", doc.Metadata["rev"])

	episodes, err := env.graphs.EpisodesByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, "revised content about storage engines", episodes[0].Content)

	// Updating a missing document reports NotFoundError
	_, err = env.mediator.Update(ctx, 99999, "x", nil)
	var notFound *core.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "document", notFound.Kind)
}

func TestIdempotentDelete(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "docs", core.Schema{})
	ctx := context.Background()

	result, err := env.mediator.Ingest(ctx, "short lived", "docs", "t", nil)
	require.NoError(t, err)
	docID := result.Document.Id

	require.NoError(t, env.mediator.Delete(ctx, docID))

	episodes, err := env.graphs.EpisodesByDocument(ctx, docID)
	require.NoError(t, err)
	require.Empty(t, episodes)

	// Second delete reports NotFoundError, never a crash
	err = env.mediator.Delete(ctx, docID)
	var notFound *core.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCrawlDuplicateModeContract(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "team-a", core.Schema{})
	ctx := context.Background()
	rootURL := "https://example.com/docs"

	fetcher := &stubFetcher{pages: []crawl.Page{
		{URL: rootURL + "/1", Title: "one", Content: "first page content"},
		{URL: rootURL + "/2", Title: "two", Content: "second page content"},
	}}

	first, err := env.mediator.CrawlIngest(ctx, rootURL, "team-a", ModeCrawl, fetcher)
	require.NoError(t, err)
	require.Equal(t, 2, first.Batch.Succeeded)

	// Second crawl-mode attempt fails with the prior session's summary
	_, err = env.mediator.CrawlIngest(ctx, rootURL, "team-a", ModeCrawl, fetcher)
	var dup *core.DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, 2, dup.Existing.PageCount)
	require.Equal(t, first.Batch.ChunkCount, dup.Existing.ChunkCount)
	require.Equal(t, first.SessionId, dup.Existing.SessionId)

	// Switching to recrawl mode succeeds and only the newest crawl remains
	fetcher.pages = []crawl.Page{
		{URL: rootURL + "/1", Title: "one", Content: "rewritten page content"},
	}
	second, err := env.mediator.CrawlIngest(ctx, rootURL, "team-a", ModeRecrawl, fetcher)
	require.NoError(t, err)
	require.Equal(t, 1, second.Batch.Succeeded)

	ids, err := env.docs.FindByCrawlRoot(ctx, rootURL, "team-a")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	doc, err := env.docs.GetDocument(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, "rewritten page content", doc.Content)
	require.Equal(t, second.SessionId, doc.Metadata[core.MetaCrawlSessionID])
}

func TestCollectionIsolationOnRecrawl(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "team-a", core.Schema{})
	env.createCollection(t, "team-b", core.Schema{})
	ctx := context.Background()
	rootURL := "https://example.com/shared"

	pagesV1 := []crawl.Page{
		{URL: rootURL + "/1", Title: "one", Content: "shared site content v1"},
		{URL: rootURL + "/2", Title: "two", Content: "more shared content v1"},
	}

	// The same URL crawled into two collections is always permitted and
	// never consults the other collection's session record.
	_, err := env.mediator.CrawlIngest(ctx, rootURL, "team-a", ModeCrawl, &stubFetcher{pages: pagesV1})
	require.NoError(t, err)
	_, err = env.mediator.CrawlIngest(ctx, rootURL, "team-b", ModeCrawl, &stubFetcher{pages: pagesV1})
	require.NoError(t, err)

	bBefore, err := env.docs.FindByCrawlRoot(ctx, rootURL, "team-b")
	require.NoError(t, err)
	require.Len(t, bBefore, 2)
	bContent := make(map[core.ID]string)
	for _, id := range bBefore {
		doc, err := env.docs.GetDocument(ctx, id)
		require.NoError(t, err)
		bContent[id] = doc.Content
	}

	// Recrawl in A with different content
	recrawled, err := env.mediator.Recrawl(ctx, rootURL, "team-a", &stubFetcher{pages: []crawl.Page{
		{URL: rootURL + "/1", Title: "one", Content: "team-a only v2"},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, recrawled.DeletedCount)
	require.Equal(t, 1, recrawled.IngestedCount)

	// B's documents are completely unchanged, count and content
	bAfter, err := env.docs.FindByCrawlRoot(ctx, rootURL, "team-b")
	require.NoError(t, err)
	require.Len(t, bAfter, 2)
	for _, id := range bAfter {
		doc, err := env.docs.GetDocument(ctx, id)
		require.NoError(t, err)
		require.Equal(t, bContent[id], doc.Content)
	}

	// B's session record is untouched
	bSession, err := env.tracker.Lookup(ctx, rootURL, "team-b")
	require.NoError(t, err)
	require.Equal(t, 2, bSession.PageCount)
}

func TestBatchIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "docs", core.Schema{})
	ctx := context.Background()
	rootURL := "https://example.com"

	pages := make([]crawl.Page, 5)
	for i := range pages {
		pages[i] = crawl.Page{
			URL:     fmt.Sprintf("%s/page-%d", rootURL, i+1),
			Title:   fmt.Sprintf("page %d", i+1),
			Content: fmt.Sprintf("content of page %d", i+1),
		}
	}
	pages[2].Content = ""
	pages[2].Err = errors.New("connection reset by peer")

	result, err := env.mediator.CrawlIngest(ctx, rootURL, "docs", ModeCrawl, &stubFetcher{pages: pages})
	require.NoError(t, err)
	require.Equal(t, 4, result.Batch.Succeeded)
	require.Equal(t, 1, result.Batch.Failed)

	failed := result.Batch.Pages[2]
	require.Equal(t, rootURL+"/page-3", failed.URL)
	require.ErrorContains(t, failed.Err, "connection reset by peer")

	ids, err := env.docs.FindByCrawlRoot(ctx, rootURL, "docs")
	require.NoError(t, err)
	require.Len(t, ids, 4)

	// The session record reflects what actually succeeded
	session, err := env.tracker.Lookup(ctx, rootURL, "docs")
	require.NoError(t, err)
	require.Equal(t, 4, session.PageCount)
}

func TestCountInvariant(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, "a", core.Schema{})
	env.createCollection(t, "b", core.Schema{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.mediator.Ingest(ctx, fmt.Sprintf("content %d", i), "a", "t", nil)
		require.NoError(t, err)
	}
	_, err := env.mediator.Ingest(ctx, "solo", "b", "t", nil)
	require.NoError(t, err)

	total, err := env.docs.CountDocuments(ctx)
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		count, err := env.docs.CountCollection(ctx, name)
		require.NoError(t, err)
		require.LessOrEqual(t, count, total)
	}

	countA, err := env.docs.CountCollection(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 3, countA)
}
