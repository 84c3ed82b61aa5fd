package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
	"github.com/poiesic/duograph/storage/badger"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()

	docRepo, graphRepo, crawlRepo, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() })

	tracker, err := NewTracker(crawlRepo)
	require.NoError(t, err)
	return tracker
}

func TestTrackerRecordAndLookup(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	session := &core.CrawlSession{
		RootURL:    "https://example.com/docs",
		Collection: "team-a",
		SessionId:  "sess-1",
		PageCount:  4,
		ChunkCount: 80,
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, tracker.Record(ctx, session))

	got, err := tracker.Lookup(ctx, "https://example.com/docs", "team-a")
	require.NoError(t, err)
	require.Equal(t, "sess-1", got.SessionId)
	require.Equal(t, 4, got.PageCount)

	// The same URL under a different collection has no record
	_, err = tracker.Lookup(ctx, "https://example.com/docs", "team-b")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTrackerRequiresCompositeKey(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	var scopeErr *core.ScopeViolationError

	_, err := tracker.Lookup(ctx, "https://example.com", "")
	require.True(t, errors.As(err, &scopeErr))

	_, err = tracker.Lookup(ctx, "", "docs")
	require.True(t, errors.As(err, &scopeErr))

	err = tracker.Record(ctx, &core.CrawlSession{RootURL: "https://example.com"})
	require.True(t, errors.As(err, &scopeErr))

	err = tracker.Forget(ctx, "https://example.com", "")
	require.True(t, errors.As(err, &scopeErr))
}

func TestTrackerForget(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	session := &core.CrawlSession{
		RootURL:    "https://example.com",
		Collection: "docs",
		SessionId:  "sess-1",
	}
	require.NoError(t, tracker.Record(ctx, session))

	require.NoError(t, tracker.Forget(ctx, "https://example.com", "docs"))

	_, err := tracker.Lookup(ctx, "https://example.com", "docs")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Forgetting again is a no-op
	require.NoError(t, tracker.Forget(ctx, "https://example.com", "docs"))
}
