package storage

import (
	"context"

	"github.com/poiesic/duograph/core"
)

// SearchOptions narrow a vector similarity search. The zero value searches
// every chunk in the store.
type SearchOptions struct {
	// Collection restricts results to documents joined to this collection
	// through the membership relation. Empty means all collections.
	Collection string

	// Filter requires equality on document metadata keys.
	Filter map[string]string

	// MinSimilarity is the lowest score a chunk may have to be returned.
	MinSimilarity float32

	// Limit caps the number of results. <= 0 means no cap.
	Limit int
}

// DocumentRepository persists documents, their chunks, and collection
// membership. Implementations must be thread-safe and support concurrent
// access.
type DocumentRepository interface {
	// CreateCollection declares a collection and its metadata schema.
	// Returns ErrDuplicateKey if the name is already taken.
	CreateCollection(ctx context.Context, collection *core.Collection) (*core.Collection, error)

	// GetCollection retrieves a collection by name.
	// Returns ErrNotFound if it does not exist.
	GetCollection(ctx context.Context, name string) (*core.Collection, error)

	// ListCollections returns all declared collections, ordered by name.
	ListCollections(ctx context.Context) ([]*core.Collection, error)

	// AddDocument stores a new document with its chunks and joins it to the
	// named collections. For a document with Id=0, generates a new ID from
	// sequence. Returns ErrNotFound if any named collection is undeclared.
	AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk, collections []string) (*core.Document, error)

	// ReplaceDocument overwrites an existing document's content, metadata
	// and chunks. Collection membership is preserved.
	// Returns ErrNotFound if the document does not exist.
	ReplaceDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) (*core.Document, error)

	// DeleteDocument removes the document, all of its chunks, and its
	// membership rows. Returns ErrNotFound if the document does not exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments returns every document in the store ordered by ID.
	// Intended for maintenance scans, not the query path.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// GetChunks retrieves a document's chunks ordered by sequence number.
	GetChunks(ctx context.Context, docID core.ID) ([]*core.Chunk, error)

	// CollectionsOf returns the names of the collections a document is
	// joined to.
	CollectionsOf(ctx context.Context, docID core.ID) ([]string, error)

	// FindByCrawlRoot returns the IDs of documents whose crawl_root_url
	// metadata equals rootURL AND whose membership includes collection.
	// The join always goes through the membership relation; a bare
	// metadata scan across collections is not offered. Returns a
	// ScopeViolationError if collection is empty.
	FindByCrawlRoot(ctx context.Context, rootURL, collection string) ([]core.ID, error)

	// CountDocuments returns the number of documents in the entire store.
	CountDocuments(ctx context.Context) (int, error)

	// CountCollection returns the number of distinct documents joined to
	// the collection. Returns ErrNotFound if the collection is undeclared.
	CountCollection(ctx context.Context, name string) (int, error)

	// FindSimilar returns chunks ranked by similarity to the given vector,
	// subject to the search options. An empty result is not an error.
	FindSimilar(ctx context.Context, vector []float32, opts SearchOptions) ([]*core.ChunkMatch, error)

	// Close closes the repository and releases resources.
	Close() error
}

// EntityMention names one entity extracted from an episode's content.
type EntityMention struct {
	Name string
	Type string
}

// FactAssertion is one extracted relationship between two mentioned
// entities, referenced by name.
type FactAssertion struct {
	Source    string
	Target    string
	Relation  string
	Statement string
}

// EpisodeGraph reports what one AddEpisodeGraph call stored.
type EpisodeGraph struct {
	Episode     *core.Episode
	EntityCount int
	FactCount   int
}

// GraphRepository persists episodes, entities, and facts.
// Implementations must be thread-safe and support concurrent access.
type GraphRepository interface {
	// AddEpisode stores a new episode. For an episode with Id=0, generates
	// a new ID from sequence. Sets InsertedAt if not already set.
	AddEpisode(ctx context.Context, episode *core.Episode) (*core.Episode, error)

	// GetEpisode retrieves a single episode by ID.
	// Returns ErrNotFound if it does not exist.
	GetEpisode(ctx context.Context, id core.ID) (*core.Episode, error)

	// EpisodesByDocument returns every episode whose provenance
	// back-reference matches the document ID, ordered by ID.
	EpisodesByDocument(ctx context.Context, docID core.ID) ([]*core.Episode, error)

	// EpisodesByGroup returns every episode in the group, ordered by
	// reference time.
	EpisodesByGroup(ctx context.Context, groupID string) ([]*core.Episode, error)

	// DeleteEpisodesByDocument removes every episode whose provenance
	// back-reference matches the document ID and returns how many were
	// removed. Deleting a document with no episodes is not an error.
	DeleteEpisodesByDocument(ctx context.Context, docID core.ID) (int, error)

	// AddEpisodeGraph stores an episode together with the entities and
	// facts extracted from it as one atomic write: either the whole
	// window lands or none of it does. Assertions whose endpoints are
	// missing from the mention list are dropped, not stored dangling.
	// Concurrent calls that touch the same entities or edges must merge
	// rather than fail.
	AddEpisodeGraph(ctx context.Context, episode *core.Episode, mentions []EntityMention, assertions []FactAssertion) (*EpisodeGraph, error)

	// UpsertEntity records that an episode mentions the (name, type) tuple
	// within a group. If the entity exists its episode list is extended,
	// otherwise it is created. Entity IDs are content-derived, so the same
	// tuple always maps to the same entity, and concurrent upserts of one
	// tuple must all land rather than lose the commit race.
	UpsertEntity(ctx context.Context, name, entityType, groupID string, episodeID core.ID) (*core.Entity, error)

	// GetEntities retrieves entities by their IDs. Missing IDs are
	// skipped, not errors.
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// AddFact stores a fact, superseding any current fact with the same
	// edge key in the same group: if the statement is unchanged the
	// existing fact gains the new episode's provenance; otherwise the old
	// fact's validity interval is closed at the new fact's ValidFrom and
	// the new fact is inserted.
	AddFact(ctx context.Context, fact *core.Fact) (*core.Fact, error)

	// FactsByGroup returns every fact in the group, including superseded
	// ones, ordered by ValidFrom. An empty groupID returns facts from all
	// groups.
	FactsByGroup(ctx context.Context, groupID string) ([]*core.Fact, error)

	// Close closes the repository and releases resources.
	Close() error
}

// CrawlRepository persists crawl session records keyed by the composite
// (root URL, collection) pair. There is deliberately no lookup by URL
// alone.
type CrawlRepository interface {
	// RecordSession upserts the session record for its (RootURL,
	// Collection) pair. The upsert is atomic; concurrent recorders cannot
	// interleave a read-modify-write.
	RecordSession(ctx context.Context, session *core.CrawlSession) error

	// LookupSession retrieves the record for the exact (rootURL,
	// collection) pair. Returns ErrNotFound if no crawl has completed for
	// that pair; sessions for the same URL under other collections are
	// never consulted.
	LookupSession(ctx context.Context, rootURL, collection string) (*core.CrawlSession, error)

	// DeleteSession removes the record for the exact (rootURL, collection)
	// pair. Deleting a missing record is not an error.
	DeleteSession(ctx context.Context, rootURL, collection string) error

	// Close closes the repository and releases resources.
	Close() error
}
