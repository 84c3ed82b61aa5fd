package mock

import (
	"context"
	"strings"
	"time"

	"github.com/poiesic/duograph/ai"
)

// MockFactExtractor is a test double for ai.FactExtractor.
// It allows custom behavior injection via function fields.
type MockFactExtractor struct {
	// ExtractFunc is called by Extract if set.
	// If nil, uses default simple word extraction.
	ExtractFunc func(ctx context.Context, text, groupID string, referenceTime time.Time) (*ai.Extraction, error)

	callCount int
}

// NewMockFactExtractor creates a mock fact extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockFactExtractor() *MockFactExtractor {
	return &MockFactExtractor{}
}

// Extract produces simple mock entities and facts from text.
// Default behavior: the first few distinct words become entities, and each
// consecutive pair of entities is linked by a MENTIONED_WITH fact.
func (m *MockFactExtractor) Extract(ctx context.Context, text, groupID string, referenceTime time.Time) (*ai.Extraction, error) {
	m.callCount++

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text, groupID, referenceTime)
	}

	words := strings.Fields(strings.ToLower(text))
	extraction := &ai.Extraction{}
	seen := map[string]bool{}
	for _, word := range words {
		if len(extraction.Entities) >= 4 {
			break
		}
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 4 || seen[word] {
			continue
		}
		seen[word] = true
		extraction.Entities = append(extraction.Entities, ai.ExtractedEntity{
			Name: word,
			Type: "abstract_concept",
		})
	}

	for i := 1; i < len(extraction.Entities); i++ {
		extraction.Facts = append(extraction.Facts, ai.ExtractedFact{
			Source:    extraction.Entities[i-1].Name,
			Target:    extraction.Entities[i].Name,
			Relation:  "MENTIONED_WITH",
			Statement: extraction.Entities[i-1].Name + " is mentioned with " + extraction.Entities[i].Name,
		})
	}

	return extraction, nil
}

// CallCount returns the number of times Extract was called.
func (m *MockFactExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockFactExtractor) Reset() {
	m.callCount = 0
	m.ExtractFunc = nil
}
