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


package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/graph"
	"github.com/poiesic/duograph/storage"
)

// Config holds configuration for the reconciliation scan.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed repairs
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary reports the outcome of a reconciliation run.
type Summary struct {
	// Scanned is the number of documents examined
	Scanned int

	// Lagging is the number of documents found with fewer stored episodes
	// than their content has windows
	Lagging int

	// Repaired is the number of lagging documents whose graph side was
	// successfully regenerated
	Repaired int

	// Failed is the number of lagging documents that could not be repaired
	// after all retry attempts
	Failed int
}

// Reconciler scans the document store for documents whose graph side lags
// behind — fewer stored episodes than the content's window count times its
// collection memberships — and regenerates extraction for them.
type Reconciler struct {
	docs     storage.DocumentRepository
	graphs   *graph.Store
	config   *Config
	progress io.Writer
}

// NewReconciler creates a new reconciler.
// progress: where to write progress output (typically os.Stderr)
func NewReconciler(docs storage.DocumentRepository, graphs *graph.Store, config *Config, progress io.Writer) (*Reconciler, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if graphs == nil {
		return nil, ErrGraphStoreRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reconciler{
		docs:     docs,
		graphs:   graphs,
		config:   config,
		progress: progress,
	}, nil
}

// Run executes the reconciliation scan. Every document is checked; lagging
// documents have their episodes regenerated with retry. A repair failure is
// counted and the scan continues, so one stubborn document never blocks the
// rest of the backfill.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	// One listing serves both the progress total and the scan itself, so
	// the two cannot drift apart under concurrent writes.
	all, err := r.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	summary := &Summary{}
	if len(all) == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 documents)\n")
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Scanning %d documents for lagging graph episodes (batch size: %d)\n",
		len(all), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, len(all), r.config.ReportInterval)
	tracker.Start()

	iterator := NewDocumentIterator(all, r.config.BatchSize)
	err = iterator.ForEach(ctx, func(batch []*core.Document) error {
		for _, doc := range batch {
			summary.Scanned++
			lagging, repairErr := r.reconcileDocument(ctx, doc)
			if !lagging {
				continue
			}
			summary.Lagging++
			if repairErr != nil {
				summary.Failed++
				fmt.Fprintf(r.progress, "\nfailed to repair document %d: %v\n", doc.Id, repairErr)
			} else {
				summary.Repaired++
			}
		}
		tracker.Update(summary.Scanned)
		return nil
	})
	if err != nil {
		return summary, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reconciliation complete. Scanned %d documents in %v: %d lagging, %d repaired, %d failed\n",
		summary.Scanned, elapsed.Round(time.Second), summary.Lagging, summary.Repaired, summary.Failed)

	return summary, nil
}

// reconcileDocument checks one document and repairs it if it lags. The
// repair drops all surviving episodes and regenerates the whole graph side;
// resuming individual windows is not possible because entity and fact rows
// from the surviving windows cannot be told apart from stale ones.
func (r *Reconciler) reconcileDocument(ctx context.Context, doc *core.Document) (bool, error) {
	collections, err := r.docs.CollectionsOf(ctx, doc.Id)
	if err != nil {
		return false, err
	}

	stored, err := r.graphs.EpisodesFor(ctx, doc.Id)
	if err != nil {
		return false, err
	}

	wanted := r.graphs.ExpectedWindows(doc.Content) * len(collections)
	if len(stored) >= wanted {
		return false, nil
	}

	referenceTime := doc.UpdatedAt
	if referenceTime.IsZero() {
		referenceTime = doc.InsertedAt
	}

	repairErr := RetryWithBackoff(ctx, func() error {
		if _, err := r.graphs.DeleteEpisodesFor(ctx, doc.Id); err != nil {
			return err
		}
		for _, name := range collections {
			report := r.graphs.StoreEpisodes(ctx, doc.Content, name, doc.Id, referenceTime, doc.Provenance())
			if !report.Complete() {
				return errors.Join(report.Errs...)
			}
		}
		return nil
	}, r.config.MaxRetries, r.config.RetryDelay)

	return true, repairErr
}
