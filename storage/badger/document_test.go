package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

func TestCollectionLifecycle(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	created, err := docRepo.CreateCollection(ctx, &core.Collection{Name: "docs"})
	if err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}
	if created.InsertedAt.IsZero() {
		t.Fatal("Expected InsertedAt to be set")
	}

	// Duplicate name must be rejected
	_, err = docRepo.CreateCollection(ctx, &core.Collection{Name: "docs"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := docRepo.GetCollection(ctx, "docs")
	if err != nil {
		t.Fatalf("Failed to get collection: %v", err)
	}
	if got.Name != "docs" {
		t.Fatalf("Expected 'docs', got '%s'", got.Name)
	}

	_, err = docRepo.GetCollection(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if _, err := docRepo.CreateCollection(ctx, &core.Collection{Name: "archive"}); err != nil {
		t.Fatalf("Failed to create second collection: %v", err)
	}

	all, err := docRepo.ListCollections(ctx)
	if err != nil {
		t.Fatalf("Failed to list collections: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 collections, got %d", len(all))
	}
	if all[0].Name != "archive" || all[1].Name != "docs" {
		t.Fatalf("Expected name order, got %s, %s", all[0].Name, all[1].Name)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if _, err := docRepo.CreateCollection(ctx, &core.Collection{Name: "docs"}); err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}

	doc := &core.Document{
		Title:   "Test Document",
		Content: "alpha beta gamma",
	}
	chunks := []*core.Chunk{
		{Seq: 0, Start: 0, End: 10, Content: "alpha beta", Vector: []float32{1, 0}},
		{Seq: 1, Start: 11, End: 16, Content: "gamma", Vector: []float32{0, 1}},
	}

	stored, err := docRepo.AddDocument(ctx, doc, chunks, []string{"docs"})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if stored.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}

	got, err := docRepo.GetDocument(ctx, stored.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if got.Title != "Test Document" {
		t.Fatalf("Expected 'Test Document', got '%s'", got.Title)
	}

	gotChunks, err := docRepo.GetChunks(ctx, stored.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(gotChunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(gotChunks))
	}
	if gotChunks[0].Seq != 0 || gotChunks[1].Seq != 1 {
		t.Fatal("Expected chunks ordered by sequence")
	}
	if gotChunks[0].DocumentId != stored.Id {
		t.Fatalf("Expected chunk DocumentId %d, got %d", stored.Id, gotChunks[0].DocumentId)
	}

	names, err := docRepo.CollectionsOf(ctx, stored.Id)
	if err != nil {
		t.Fatalf("Failed to get memberships: %v", err)
	}
	if len(names) != 1 || names[0] != "docs" {
		t.Fatalf("Expected membership [docs], got %v", names)
	}

	count, err := docRepo.CountCollection(ctx, "docs")
	if err != nil {
		t.Fatalf("Failed to count collection: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 document in collection, got %d", count)
	}
}

func TestAddDocumentUnknownCollection(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	_, err = docRepo.AddDocument(ctx, &core.Document{Title: "x", Content: "y"}, nil, []string{"nope"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown collection, got %v", err)
	}
}

func TestReplaceDocumentPreservesMembership(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if _, err := docRepo.CreateCollection(ctx, &core.Collection{Name: "docs"}); err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}

	doc, err := docRepo.AddDocument(ctx, &core.Document{Title: "v1", Content: "old"}, []*core.Chunk{
		{Seq: 0, Content: "old", Vector: []float32{1}},
		{Seq: 1, Content: "old2", Vector: []float32{1}},
	}, []string{"docs"})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	updated := &core.Document{Id: doc.Id, Title: "v2", Content: "new"}
	if _, err := docRepo.ReplaceDocument(ctx, updated, []*core.Chunk{
		{Seq: 0, Content: "new", Vector: []float32{1}},
	}); err != nil {
		t.Fatalf("Failed to replace document: %v", err)
	}

	got, err := docRepo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if got.Title != "v2" {
		t.Fatalf("Expected 'v2', got '%s'", got.Title)
	}

	// Old chunk set must be fully replaced, not merged
	chunks, err := docRepo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk after replace, got %d", len(chunks))
	}

	names, err := docRepo.CollectionsOf(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get memberships: %v", err)
	}
	if len(names) != 1 || names[0] != "docs" {
		t.Fatalf("Expected membership preserved, got %v", names)
	}

	// Replacing a missing document is an error
	_, err = docRepo.ReplaceDocument(ctx, &core.Document{Id: 99999, Title: "x"}, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if _, err := docRepo.CreateCollection(ctx, &core.Collection{Name: "docs"}); err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}

	doc, err := docRepo.AddDocument(ctx, &core.Document{Title: "t", Content: "c"}, []*core.Chunk{
		{Seq: 0, Content: "c", Vector: []float32{1}},
	}, []string{"docs"})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	if err := docRepo.DeleteDocument(ctx, doc.Id); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}

	_, err = docRepo.GetDocument(ctx, doc.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	chunks, err := docRepo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("Expected no chunks after delete, got %d", len(chunks))
	}

	count, err := docRepo.CountCollection(ctx, "docs")
	if err != nil {
		t.Fatalf("Failed to count collection: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected empty collection after delete, got %d", count)
	}

	// Second delete of the same ID reports not found
	err = docRepo.DeleteDocument(ctx, doc.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFindByCrawlRootScopedToCollection(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	for _, name := range []string{"team-a", "team-b"} {
		if _, err := docRepo.CreateCollection(ctx, &core.Collection{Name: name}); err != nil {
			t.Fatalf("Failed to create collection: %v", err)
		}
	}

	rootURL := "https://example.com/docs"
	addPage := func(collection, content string) core.ID {
		doc, err := docRepo.AddDocument(ctx, &core.Document{
			Title:    "page",
			Content:  content,
			Metadata: map[string]string{core.MetaCrawlRootURL: rootURL},
		}, nil, []string{collection})
		if err != nil {
			t.Fatalf("Failed to add crawled page: %v", err)
		}
		return doc.Id
	}

	idA1 := addPage("team-a", "a1")
	idA2 := addPage("team-a", "a2")
	idB := addPage("team-b", "b1")

	found, err := docRepo.FindByCrawlRoot(ctx, rootURL, "team-a")
	if err != nil {
		t.Fatalf("Failed to find by crawl root: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Expected 2 documents in team-a, got %d", len(found))
	}
	for _, id := range found {
		if id == idB {
			t.Fatal("Result leaked a document from another collection")
		}
		if id != idA1 && id != idA2 {
			t.Fatalf("Unexpected document ID %d", id)
		}
	}

	// Lookups without a collection scope are refused outright
	_, err = docRepo.FindByCrawlRoot(ctx, rootURL, "")
	var scopeErr *core.ScopeViolationError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("Expected ScopeViolationError, got %v", err)
	}
}

func TestFindSimilar(t *testing.T) {
	docRepo, graphRepo, crawlRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docRepo.Close(); graphRepo.Close(); crawlRepo.Close(); backend.Close() }()

	ctx := context.Background()

	for _, name := range []string{"docs", "other"} {
		if _, err := docRepo.CreateCollection(ctx, &core.Collection{Name: name}); err != nil {
			t.Fatalf("Failed to create collection: %v", err)
		}
	}

	_, err = docRepo.AddDocument(ctx, &core.Document{
		Title:    "close",
		Content:  "close match",
		Metadata: map[string]string{"lang": "en"},
	}, []*core.Chunk{
		{Seq: 0, Content: "close match", Vector: []float32{1, 0}},
	}, []string{"docs"})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	_, err = docRepo.AddDocument(ctx, &core.Document{
		Title:   "far",
		Content: "far match",
	}, []*core.Chunk{
		{Seq: 0, Content: "far match", Vector: []float32{0, 1}},
	}, []string{"other"})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	query := []float32{1, 0}

	// Unscoped search ranks the aligned vector first
	results, err := docRepo.FindSimilar(ctx, query, storage.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Document.Title != "close" {
		t.Fatalf("Expected 'close' ranked first, got '%s'", results[0].Document.Title)
	}

	// Collection scope excludes the other collection's chunk
	results, err = docRepo.FindSimilar(ctx, query, storage.SearchOptions{Collection: "docs"})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Document.Title != "close" {
		t.Fatalf("Expected only the docs chunk, got %d results", len(results))
	}

	// Metadata filter
	results, err = docRepo.FindSimilar(ctx, query, storage.SearchOptions{Filter: map[string]string{"lang": "de"}})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Expected no results for unmatched filter, got %d", len(results))
	}

	// Threshold excludes low scores; empty result is not an error
	results, err = docRepo.FindSimilar(ctx, query, storage.SearchOptions{MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result above threshold, got %d", len(results))
	}
}
