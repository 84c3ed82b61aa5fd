package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/graph"
	"github.com/poiesic/duograph/storage"
	"github.com/poiesic/duograph/vector"
)

// defaultMinSimilarity filters out chunks with no real semantic relation to
// the query when the caller does not set a threshold.
const defaultMinSimilarity = 0.60

// Searcher is the upward query surface: vector similarity on one side,
// graph relationship and temporal queries on the other. It sits beside the
// mediator, never behind it — queries do not pass through ingestion.
type Searcher struct {
	vectors *vector.Store
	graphs  *graph.Store
	logger  *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(vectors *vector.Store, graphs *graph.Store, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if graphs == nil {
		return nil, ErrGraphStoreRequired
	}

	s := &Searcher{
		vectors: vectors,
		graphs:  graphs,
		logger:  slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Options narrow a combined search. Collection scopes both sides: the
// vector side through membership, the graph side as the group ID.
type Options struct {
	Collection    string
	Filter        map[string]string
	MinSimilarity float32
	Limit         int
}

// Result is the combined outcome of one query against both stores.
type Result struct {
	Chunks []*core.ChunkMatch
	Facts  []*core.FactResult
}

// Search runs the query against both stores and returns ranked chunks plus
// currently-valid facts. Empty results are not errors.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	return s.SearchWithMonitor(ctx, query, opts, nil)
}

// SearchWithMonitor runs Search with stage callbacks for progress display.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, opts Options, monitor Monitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	minSimilarity := opts.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = defaultMinSimilarity
	}

	chunks, err := s.vectors.Search(ctx, query, storage.SearchOptions{
		Collection:    opts.Collection,
		Filter:        opts.Filter,
		MinSimilarity: minSimilarity,
		Limit:         0, // boost before limiting
	})
	if err != nil {
		s.logger.Error("vector search failed", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterVectorSearch(chunks)

	// Chunks that contain every meaningful query word verbatim outrank
	// merely-similar ones.
	for _, match := range chunks {
		if containsAllTerms(match.Chunk.Content, query) {
			match.Score += 0.3
			monitor.VerbatimHit(match)
		}
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if opts.Limit > 0 && len(chunks) > opts.Limit {
		chunks = chunks[:opts.Limit]
	}

	facts, err := s.graphs.QueryRelationships(ctx, query, opts.Collection, nil)
	if err != nil {
		s.logger.Error("graph search failed", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterGraphSearch(facts)

	result := &Result{Chunks: chunks, Facts: facts}
	monitor.Finish(result)
	return result, nil
}

// Facts queries the graph side alone: currently-valid facts when validAt is
// nil, the facts valid at that instant otherwise.
func (s *Searcher) Facts(ctx context.Context, query, groupID string, validAt *time.Time) ([]*core.FactResult, error) {
	return s.graphs.QueryRelationships(ctx, query, groupID, validAt)
}

// FactHistory queries the graph side over a time range, superseded facts
// included, ordered by when they became valid.
func (s *Searcher) FactHistory(ctx context.Context, query, groupID string, from, until *time.Time) ([]*core.FactResult, error) {
	return s.graphs.QueryTemporal(ctx, query, groupID, from, until)
}

// stop words ignored by the verbatim check
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

func meaningfulTerms(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:'\"-()[]{}")
		if word != "" && !stopWords[word] {
			terms = append(terms, word)
		}
	}
	return terms
}

// containsAllTerms reports whether every meaningful query word appears in
// the text.
func containsAllTerms(text, query string) bool {
	queryTerms := meaningfulTerms(query)
	if len(queryTerms) == 0 {
		return false
	}

	seen := make(map[string]bool)
	for _, term := range meaningfulTerms(text) {
		seen[term] = true
	}
	for _, term := range queryTerms {
		if !seen[term] {
			return false
		}
	}
	return true
}
