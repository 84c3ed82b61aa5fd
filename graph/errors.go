package graph

import "errors"

var (
	// ErrGraphRepositoryRequired is returned when no graph repository is provided.
	ErrGraphRepositoryRequired = errors.New("graph repository is required")

	// ErrExtractorRequired is returned when no fact extractor is provided.
	ErrExtractorRequired = errors.New("fact extractor is required")
)
