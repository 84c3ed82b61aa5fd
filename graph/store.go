package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/duograph/ai"
	"github.com/poiesic/duograph/chunker"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

const (
	defaultWindowBytes    = 32 * 1024
	defaultExtractTimeout = 120 * time.Second
)

// Store is the temporal knowledge-graph side of the engine. Content is
// split into size-bounded windows, each stored as one episode and submitted
// to extraction independently, so a failure on one window never discards
// windows that already succeeded.
type Store struct {
	repo           storage.GraphRepository
	extractor      ai.FactExtractor
	windowBytes    int
	extractTimeout time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithWindowBytes sets the content size above which episodes are windowed.
// Default is 32 KiB.
func WithWindowBytes(n int) Option {
	return func(s *Store) error {
		if n <= 0 {
			return errors.New("window size must be positive")
		}
		s.windowBytes = n
		return nil
	}
}

// WithExtractTimeout sets the per-window extraction budget.
// Default is 120 seconds.
func WithExtractTimeout(d time.Duration) Option {
	return func(s *Store) error {
		if d <= 0 {
			return errors.New("extract timeout must be positive")
		}
		s.extractTimeout = d
		return nil
	}
}

// WithRateLimit sets the extraction request rate in calls per second.
// Default is 1.
func WithRateLimit(rps float64) Option {
	return func(s *Store) error {
		if rps <= 0 {
			return errors.New("rate limit must be positive")
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a new graph store.
func NewStore(repo storage.GraphRepository, extractor ai.FactExtractor, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrGraphRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	s := &Store{
		repo:           repo,
		extractor:      extractor,
		windowBytes:    defaultWindowBytes,
		extractTimeout: defaultExtractTimeout,
		limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		logger:         slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Report describes the outcome of one StoreEpisodes call. Windows succeed
// or fail independently; EpisodesStored of EpisodesWanted tells the caller
// exactly how far graph enrichment got.
type Report struct {
	EpisodesWanted int
	EpisodesStored int
	EpisodeIds     []core.ID
	EntityCount    int
	FactCount      int
	Errs           []error
}

// Complete reports whether every window was stored.
func (r *Report) Complete() bool {
	return r.EpisodesStored == r.EpisodesWanted
}

// ExpectedWindows returns how many episodes a document with the given
// content would produce. Reconciliation compares this against the stored
// episode count.
func (s *Store) ExpectedWindows(content string) int {
	return len(chunker.Windows(content, s.windowBytes))
}

// StoreEpisodes splits content into windows sized for extraction and stores
// one episode per window, sharing the document back-reference and groupID.
// Each window is extracted and persisted independently; the returned Report
// carries per-window failures rather than aborting on the first one.
func (s *Store) StoreEpisodes(ctx context.Context, content, groupID string, docID core.ID, referenceTime time.Time, description string) *Report {
	windows := chunker.Windows(content, s.windowBytes)
	report := &Report{EpisodesWanted: len(windows)}

	for i, window := range windows {
		name := episodeName(docID, i+1, len(windows))

		episode, entities, facts, err := s.storeWindow(ctx, window.Content, name, groupID, docID, referenceTime, description)
		if err != nil {
			s.logger.Warn("episode window failed",
				"documentId", docID, "window", name, "err", err)
			report.Errs = append(report.Errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		report.EpisodesStored++
		report.EpisodeIds = append(report.EpisodeIds, episode.Id)
		report.EntityCount += entities
		report.FactCount += facts
	}

	return report
}

// DeleteEpisodesFor removes every episode whose provenance back-reference
// matches the document ID, however many windows it was stored as. Returns
// how many episodes were removed.
func (s *Store) DeleteEpisodesFor(ctx context.Context, docID core.ID) (int, error) {
	return s.repo.DeleteEpisodesByDocument(ctx, docID)
}

// EpisodesFor returns the stored episodes for a document.
func (s *Store) EpisodesFor(ctx context.Context, docID core.ID) ([]*core.Episode, error) {
	return s.repo.EpisodesByDocument(ctx, docID)
}

// storeWindow extracts one window and persists its episode, entities, and
// facts as one atomic write. Nothing hits the store until extraction
// succeeds and the whole window lands together, so a stored episode row
// always implies its extraction output landed with it, and a document's
// stored episode count lagging its expected window count is the signal
// that extraction needs to be reconciled.
func (s *Store) storeWindow(ctx context.Context, content, name, groupID string, docID core.ID, referenceTime time.Time, description string) (*core.Episode, int, int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, 0, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	extraction, err := s.extractor.Extract(extractCtx, content, groupID, referenceTime)
	if err != nil {
		if errors.Is(extractCtx.Err(), context.DeadlineExceeded) {
			return nil, 0, 0, &core.TimeoutError{Step: "extract", Budget: s.extractTimeout}
		}
		return nil, 0, 0, fmt.Errorf("extraction: %w", err)
	}

	mentions := make([]storage.EntityMention, 0, len(extraction.Entities))
	for _, entity := range extraction.Entities {
		mentions = append(mentions, storage.EntityMention{Name: entity.Name, Type: entity.Type})
	}
	assertions := make([]storage.FactAssertion, 0, len(extraction.Facts))
	for _, fact := range extraction.Facts {
		assertions = append(assertions, storage.FactAssertion{
			Source:    fact.Source,
			Target:    fact.Target,
			Relation:  fact.Relation,
			Statement: fact.Statement,
		})
	}

	stored, err := s.repo.AddEpisodeGraph(ctx, &core.Episode{
		Name:          name,
		Content:       content,
		GroupId:       groupID,
		DocumentId:    docID,
		Description:   description,
		ReferenceTime: referenceTime,
	}, mentions, assertions)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("storing window: %w", err)
	}

	if dropped := len(assertions) - stored.FactCount; dropped > 0 {
		// Extractors can assert facts over entities they failed to list.
		s.logger.Debug("dropped facts with unknown endpoints",
			"window", name, "count", dropped)
	}

	return stored.Episode, stored.EntityCount, stored.FactCount, nil
}

// episodeName encodes the window index when content was split; a document
// that fits in one window keeps the plain doc_<id> name.
func episodeName(docID core.ID, part, total int) string {
	if total == 1 {
		return fmt.Sprintf("doc_%d", docID)
	}
	return fmt.Sprintf("doc_%d_part%dof%d", docID, part, total)
}
