// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.FactExtractor,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// Default behavior:
//
//   - MockEmbedder: returns deterministic vectors based on text hash
//   - MockFactExtractor: turns the first distinct words of text into entities
//     and links consecutive entities with MENTIONED_WITH facts
//   - MockProvider: aggregates mock embedder and extractor
//
// Custom behavior is injected through the exported function fields:
//
//	extractor := mock.NewMockFactExtractor()
//	extractor.ExtractFunc = func(ctx context.Context, text, groupID string, referenceTime time.Time) (*ai.Extraction, error) {
//	    return nil, errors.New("extraction service down")
//	}
package mock
