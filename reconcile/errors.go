package reconcile

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrDocumentRepositoryRequired is returned when the document repository is nil
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrGraphStoreRequired is returned when the graph store is nil
	ErrGraphStoreRequired = errors.New("graph store is required")
)
