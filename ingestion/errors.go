package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrTrackerRequired is returned when a crawl session tracker is not provided.
	ErrTrackerRequired = errors.New("crawl session tracker required")

	// ErrFetcherRequired is returned when a crawl operation is requested without a fetcher.
	ErrFetcherRequired = errors.New("fetcher required")
)
