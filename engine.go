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


package duograph

import (
	"io"
	"log/slog"

	"github.com/poiesic/duograph/ai"
	"github.com/poiesic/duograph/ai/openai"
	"github.com/poiesic/duograph/crawl"
	"github.com/poiesic/duograph/graph"
	"github.com/poiesic/duograph/ingestion"
	"github.com/poiesic/duograph/reconcile"
	"github.com/poiesic/duograph/search"
	"github.com/poiesic/duograph/storage"
	"github.com/poiesic/duograph/storage/badger"
	"github.com/poiesic/duograph/vector"
)

// Engine owns the storage backend, the AI provider, and the two store
// facades. It is the single entry point embedding applications and the CLI
// use: ingestion mediators, searchers, and reconcilers are created from it
// and share its repositories.
type Engine struct {
	backend   *badger.Backend
	docRepo   storage.DocumentRepository
	graphRepo storage.GraphRepository
	crawlRepo storage.CrawlRepository
	provider  ai.AIProvider
	vectors   *vector.Store
	graphs    *graph.Store
	tracker   *crawl.Tracker
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig sets the AI service configuration used to build the
// OpenAI-compatible provider. Ignored when WithProvider is also given.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider instead of constructing one
// from config. The engine takes ownership and closes it with Close.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithInMemory opens the backend in memory, discarding all data on Close.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithEngineLogger sets a custom logger.
// Default is slog.Default().
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEngine opens the backend at filePath and wires the repositories, the
// AI provider, and both store facades.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	// Apply options
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	// Create document repository
	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create graph repository
	graphRepo, err := badger.NewGraphRepository(backend)
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	// Create crawl session repository
	crawlRepo := badger.NewCrawlRepository(backend)

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			graphRepo.Close()
			docRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	closeAll := func() {
		provider.Close()
		graphRepo.Close()
		docRepo.Close()
		backend.Close()
	}

	vectors, err := vector.NewStore(docRepo, provider.Embedder(),
		vector.WithLogger(options.logger))
	if err != nil {
		closeAll()
		return nil, err
	}

	graphs, err := graph.NewStore(graphRepo, provider.FactExtractor(),
		graph.WithLogger(options.logger))
	if err != nil {
		closeAll()
		return nil, err
	}

	tracker, err := crawl.NewTracker(crawlRepo, crawl.WithLogger(options.logger))
	if err != nil {
		closeAll()
		return nil, err
	}

	return &Engine{
		backend:   backend,
		docRepo:   docRepo,
		graphRepo: graphRepo,
		crawlRepo: crawlRepo,
		provider:  provider,
		vectors:   vectors,
		graphs:    graphs,
		tracker:   tracker,
		logger:    options.logger,
	}, nil
}

// Close shuts the engine down: AI provider first, then the repositories,
// then the backend.
func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := e.crawlRepo.Close(); err != nil {
		e.logger.Error("error closing crawl repository", "err", err)
		return err
	}
	if err := e.graphRepo.Close(); err != nil {
		e.logger.Error("error closing graph repository", "err", err)
		return err
	}
	if err := e.docRepo.Close(); err != nil {
		e.logger.Error("error closing document repository", "err", err)
		return err
	}

	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.docRepo
}

func (e *Engine) GraphRepository() storage.GraphRepository {
	return e.graphRepo
}

func (e *Engine) CrawlRepository() storage.CrawlRepository {
	return e.crawlRepo
}

func (e *Engine) VectorStore() *vector.Store {
	return e.vectors
}

func (e *Engine) GraphStore() *graph.Store {
	return e.graphs
}

func (e *Engine) Tracker() *crawl.Tracker {
	return e.tracker
}

func (e *Engine) NewMediator(opts ...ingestion.Option) (*ingestion.Mediator, error) {
	return ingestion.NewMediator(e.docRepo, e.vectors, e.graphs, e.tracker, opts...)
}

func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(e.vectors, e.graphs, opts...)
}

func (e *Engine) NewReconciler(config *reconcile.Config, progress io.Writer) (*reconcile.Reconciler, error) {
	return reconcile.NewReconciler(e.docRepo, e.graphs, config, progress)
}
