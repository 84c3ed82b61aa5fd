package search

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/duograph/ai"
	"github.com/poiesic/duograph/ai/mock"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/graph"
	"github.com/poiesic/duograph/storage/badger"
	"github.com/poiesic/duograph/vector"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	started    bool
	vectorHits int
	verbatim   int
	graphHits  int
	finished   bool
}

func (m *recordingMonitor) Start(_ string)                         { m.started = true }
func (m *recordingMonitor) AfterVectorSearch(c []*core.ChunkMatch) { m.vectorHits = len(c) }
func (m *recordingMonitor) VerbatimHit(_ *core.ChunkMatch)         { m.verbatim++ }
func (m *recordingMonitor) AfterGraphSearch(f []*core.FactResult)  { m.graphHits = len(f) }
func (m *recordingMonitor) Finish(_ *Result)                       { m.finished = true }

func newTestSearcher(t *testing.T) (*Searcher, *vector.Store, *graph.Store) {
	t.Helper()

	docRepo, graphRepo, crawlRepo, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() })

	vectors, err := vector.NewStore(docRepo, mock.NewMockEmbedder())
	require.NoError(t, err)

	extractor := mock.NewMockFactExtractor()
	extractor.ExtractFunc = func(ctx context.Context, text, groupID string, referenceTime time.Time) (*ai.Extraction, error) {
		return &ai.Extraction{
			Entities: []ai.ExtractedEntity{
				{Name: "badger", Type: "technology"},
				{Name: "duograph", Type: "technology"},
			},
			Facts: []ai.ExtractedFact{
				{Source: "duograph", Target: "badger", Relation: "STORES_IN", Statement: "duograph stores records in badger"},
			},
		}, nil
	}
	graphs, err := graph.NewStore(graphRepo, extractor, graph.WithRateLimit(1000))
	require.NoError(t, err)

	_, err = docRepo.CreateCollection(context.Background(), &core.Collection{Name: "docs"})
	require.NoError(t, err)

	searcher, err := NewSearcher(vectors, graphs)
	require.NoError(t, err)
	return searcher, vectors, graphs
}

func TestSearchCombinesBothStores(t *testing.T) {
	searcher, vectors, graphs := newTestSearcher(t)
	ctx := context.Background()

	doc, _, err := vectors.Store(ctx, &core.Document{
		Title:   "engine notes",
		Content: "duograph stores records in badger",
	}, []string{"docs"})
	require.NoError(t, err)

	report := graphs.StoreEpisodes(ctx, doc.Content, "docs", doc.Id, time.Now(), "")
	require.True(t, report.Complete())

	monitor := &recordingMonitor{}
	result, err := searcher.SearchWithMonitor(ctx, "duograph stores records in badger", Options{Collection: "docs"}, monitor)
	require.NoError(t, err)

	require.NotEmpty(t, result.Chunks)
	require.Equal(t, doc.Id, result.Chunks[0].Document.Id)

	require.Len(t, result.Facts, 1)
	require.Equal(t, "STORES_IN", result.Facts[0].Fact.Relation)
	require.Equal(t, "duograph", result.Facts[0].SourceName)

	require.True(t, monitor.started)
	require.True(t, monitor.finished)
	require.Equal(t, len(result.Chunks), monitor.vectorHits)
	require.Equal(t, 1, monitor.graphHits)
	require.GreaterOrEqual(t, monitor.verbatim, 1, "exact content must get the verbatim boost")
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	searcher, _, _ := newTestSearcher(t)

	result, err := searcher.Search(context.Background(), "nothing ingested yet", Options{Collection: "docs"})
	require.NoError(t, err)
	require.Empty(t, result.Chunks)
	require.Empty(t, result.Facts)
}

func TestFactHistory(t *testing.T) {
	searcher, _, graphs := newTestSearcher(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, graphs.StoreEpisodes(ctx, "duograph stores records in badger", "docs", 1, base, "").Complete())

	history, err := searcher.FactHistory(ctx, "badger", "docs", nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)

	at := base.Add(-time.Hour)
	before, err := searcher.Facts(ctx, "badger", "docs", &at)
	require.NoError(t, err)
	require.Empty(t, before, "facts are not valid before their interval opens")
}

func TestContainsAllTerms(t *testing.T) {
	require.True(t, containsAllTerms("The quick brown fox.", "quick fox"))
	require.False(t, containsAllTerms("The quick brown fox.", "slow fox"))
	// Queries made only of stop words never qualify for the boost
	require.False(t, containsAllTerms("anything at all", "the a an"))
}
