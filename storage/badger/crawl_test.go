package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

func TestCrawlSessionCompositeKey(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()
	rootURL := "https://example.com/docs"

	session := &core.CrawlSession{
		RootURL:    rootURL,
		Collection: "team-a",
		SessionId:  "sess-1",
		PageCount:  12,
		ChunkCount: 340,
		Timestamp:  time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := crawlRepo.RecordSession(ctx, session); err != nil {
		t.Fatalf("Failed to record session: %v", err)
	}

	got, err := crawlRepo.LookupSession(ctx, rootURL, "team-a")
	if err != nil {
		t.Fatalf("Failed to look up session: %v", err)
	}
	if got.SessionId != "sess-1" || got.PageCount != 12 || got.ChunkCount != 340 {
		t.Fatalf("Unexpected session record: %+v", got)
	}

	// Same URL under another collection is a distinct key
	_, err = crawlRepo.LookupSession(ctx, rootURL, "team-b")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for other collection, got %v", err)
	}
}

func TestCrawlSessionUpsert(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	first := &core.CrawlSession{
		RootURL:    "https://example.com",
		Collection: "docs",
		SessionId:  "sess-1",
		PageCount:  5,
	}
	if err := crawlRepo.RecordSession(ctx, first); err != nil {
		t.Fatalf("Failed to record session: %v", err)
	}

	second := &core.CrawlSession{
		RootURL:    "https://example.com",
		Collection: "docs",
		SessionId:  "sess-2",
		PageCount:  9,
	}
	if err := crawlRepo.RecordSession(ctx, second); err != nil {
		t.Fatalf("Failed to re-record session: %v", err)
	}

	got, err := crawlRepo.LookupSession(ctx, "https://example.com", "docs")
	if err != nil {
		t.Fatalf("Failed to look up session: %v", err)
	}
	if got.SessionId != "sess-2" || got.PageCount != 9 {
		t.Fatalf("Expected latest record to win, got %+v", got)
	}
}

func TestCrawlSessionDelete(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	session := &core.CrawlSession{
		RootURL:    "https://example.com",
		Collection: "docs",
		SessionId:  "sess-1",
	}
	if err := crawlRepo.RecordSession(ctx, session); err != nil {
		t.Fatalf("Failed to record session: %v", err)
	}

	if err := crawlRepo.DeleteSession(ctx, "https://example.com", "docs"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	_, err = crawlRepo.LookupSession(ctx, "https://example.com", "docs")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing record is a no-op
	if err := crawlRepo.DeleteSession(ctx, "https://nowhere.test", "docs"); err != nil {
		t.Fatalf("Expected no error deleting missing record, got %v", err)
	}
}
