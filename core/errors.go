// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports metadata that failed validation against a
// collection's schema. It is returned before any store write happens.
type ValidationError struct {
	Collection string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.String()
	}
	return fmt.Sprintf("metadata validation failed for collection %q: %s",
		e.Collection, strings.Join(fields, "; "))
}

// NotFoundError reports an operation on a document or collection that does
// not exist.
type NotFoundError struct {
	Kind string // "document" or "collection"
	Ref  string // id or name
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Ref)
}

// DuplicateError reports a crawl-mode ingest into a collection that already
// has a session for the root URL. It carries the existing session's summary
// so the caller can decide whether to switch to recrawl mode.
type DuplicateError struct {
	Existing CrawlSession
}

func (e *DuplicateError) Error() string {
	s := e.Existing
	return fmt.Sprintf(
		"%s already crawled into collection %q: session %s ingested %d pages (%d chunks) at %s",
		s.RootURL, s.Collection, s.SessionId, s.PageCount, s.ChunkCount,
		s.Timestamp.Format(time.RFC3339))
}

// PartialFailure reports an ingestion where the vector write succeeded but
// the graph side failed or only some extraction windows completed. The
// document is searchable; graph enrichment can be reconciled later.
type PartialFailure struct {
	DocumentId     ID
	ChunksStored   int
	EpisodesStored int
	EpisodesWanted int
	Errs           []error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("document %d partially ingested: %d chunks stored, %d/%d episodes stored",
		e.DocumentId, e.ChunksStored, e.EpisodesStored, e.EpisodesWanted)
}

// Unwrap exposes the underlying step failures to errors.Is/As.
func (e *PartialFailure) Unwrap() []error {
	return e.Errs
}

// TimeoutError reports an external call that exceeded its budget. It is a
// per-step failure, retryable by the caller, never fatal to a batch.
type TimeoutError struct {
	Step   string // "embed", "extract", "fetch"
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded its %s budget", e.Step, e.Budget)
}

// ScopeViolationError reports an internal misuse: a crawl-scoped lookup or
// deletion attempted without a collection qualifier. It exists to make the
// url-only filter bug class unrepresentable.
type ScopeViolationError struct {
	Op string
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("%s requires a collection qualifier", e.Op)
}
