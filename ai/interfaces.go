package ai

import (
	"context"
	"time"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// FactExtractor extracts entities and the relationships between them from a
// text span. Extraction is a slow, LLM-class operation whose latency grows
// with input size; callers bound input via windowing and pass an explicit
// deadline on the context.
// Implementations must be thread-safe for concurrent use.
type FactExtractor interface {
	// Extract analyzes one text span and returns the entities it mentions
	// and the relationships it asserts. groupID scopes entity identity;
	// referenceTime anchors the validity interval of extracted facts.
	// Returns an empty extraction (not an error) when nothing is found.
	Extract(ctx context.Context, text, groupID string, referenceTime time.Time) (*Extraction, error)
}

// Extraction is the output of one FactExtractor call.
type Extraction struct {
	Entities []ExtractedEntity
	Facts    []ExtractedFact
}

// ExtractedEntity is a named thing identified in text.
type ExtractedEntity struct {
	// Name is the entity identifier in lowercase, 1-3 words, singular form.
	// Example: "eiffel tower", "paris", "acme corp"
	Name string

	// Type categorizes the entity (e.g. "building", "place", "organization").
	// Must match one of the predefined entity types.
	Type string
}

// ExtractedFact is a relationship asserted in text between two extracted
// entities, referenced by name.
type ExtractedFact struct {
	// Source and Target are entity names that must appear in the same
	// extraction's Entities list.
	Source string
	Target string

	// Relation is a short verb phrase in SCREAMING_SNAKE_CASE, e.g.
	// "LOCATED_IN", "WORKS_AT".
	Relation string

	// Statement is the fact in plain language.
	Statement string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and FactExtractor instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// FactExtractor returns the entity/relationship extraction service.
	// The returned FactExtractor is safe for concurrent use.
	FactExtractor() FactExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
