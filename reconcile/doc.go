// Package reconcile provides backfill tooling for the graph side of the
// store. Graph extraction may partially fail during ingestion, leaving a
// document with fewer stored episodes than its content has windows; the
// reconciler finds those documents and re-runs extraction for them.
//
// This package supports batch scanning of documents, progress tracking,
// and retry logic with exponential backoff.
package reconcile
