package ingestion

import (
	"github.com/poiesic/duograph/core"
)

// IngestResult states exactly what succeeded for one document: the document
// is always searchable once returned, and the episode counts tell the
// caller whether graph enrichment completed, lagged, or failed entirely.
type IngestResult struct {
	Document       *core.Document
	ChunkCount     int
	EpisodesStored int
	EpisodesWanted int
	EntityCount    int
	FactCount      int

	// GraphErrs carries the per-window failures behind a partial graph
	// write. Empty when the graph side completed.
	GraphErrs []error
}

// Partial reports whether the vector write succeeded but the graph side did
// not fully complete.
func (r *IngestResult) Partial() bool {
	return r.EpisodesStored < r.EpisodesWanted
}

// Failure returns the typed partial-failure view of this result, or nil if
// the ingestion completed in both stores.
func (r *IngestResult) Failure() *core.PartialFailure {
	if !r.Partial() {
		return nil
	}
	return &core.PartialFailure{
		DocumentId:     r.Document.Id,
		ChunksStored:   r.ChunkCount,
		EpisodesStored: r.EpisodesStored,
		EpisodesWanted: r.EpisodesWanted,
		Errs:           r.GraphErrs,
	}
}

// PageResult is the outcome for one page of a batch ingestion.
type PageResult struct {
	URL    string
	Result *IngestResult // nil when Err is set
	Err    error
}

// BatchResult is the per-page tally for a multi-page ingestion. One page's
// failure never aborts its siblings; callers read the tally instead of
// catching an all-or-nothing error.
type BatchResult struct {
	Pages      []PageResult
	Succeeded  int
	Failed     int
	ChunkCount int
}

// CrawlResult reports a completed crawl-and-ingest pass.
type CrawlResult struct {
	SessionId string
	Batch     *BatchResult
}

// RecrawlResult reports a recrawl: how many prior documents were deleted
// for the (URL, collection) pair, and the fresh ingestion tally.
type RecrawlResult struct {
	DeletedCount  int
	IngestedCount int
	SessionId     string
	Batch         *BatchResult
}
