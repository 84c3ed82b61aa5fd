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


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/duograph/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// FactExtractor implements ai.FactExtractor using OpenAI-compatible chat APIs.
type FactExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// entity and fact mirror the JSON structure expected from the LLM.
type entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type fact struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Relation  string `json:"relation"`
	Statement string `json:"statement"`
}

// extraction is the wrapper structure for the LLM's JSON response.
type extraction struct {
	Entities []entity `json:"entities"`
	Facts    []fact   `json:"facts"`
}

// newFactExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newFactExtractor(config *ai.Config) (*FactExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &FactExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewFactExtractor creates a new fact extractor using the provided configuration.
//
// Returns ai.FactExtractor interface to enforce abstraction.
func NewFactExtractor(config *ai.Config) (ai.FactExtractor, error) {
	return newFactExtractor(config)
}

// Extract extracts entities and relationships from one text span using an
// LLM. Facts whose endpoints do not appear in the entity list are dropped.
func (e *FactExtractor) Extract(ctx context.Context, text, groupID string, referenceTime time.Time) (*ai.Extraction, error) {
	systemPrompt := buildSystemPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result extraction
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.Extraction{}, nil
		}

		responseText := stripCodeFences(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	return e.convert(result), nil
}

// convert maps the wire structures onto ai types, normalizing names and
// dropping facts whose endpoints were not extracted as entities.
func (e *FactExtractor) convert(raw extraction) *ai.Extraction {
	out := &ai.Extraction{}
	known := make(map[string]bool, len(raw.Entities))

	for _, ent := range raw.Entities {
		name := strings.ToLower(strings.TrimSpace(ent.Name))
		if name == "" || known[name] {
			continue
		}
		known[name] = true
		out.Entities = append(out.Entities, ai.ExtractedEntity{
			Name: name,
			Type: strings.TrimSpace(ent.Type),
		})
	}

	for _, f := range raw.Facts {
		source := strings.ToLower(strings.TrimSpace(f.Source))
		target := strings.ToLower(strings.TrimSpace(f.Target))
		if !known[source] || !known[target] {
			e.logger.Debug("dropping fact with unknown endpoint", "source", f.Source, "target", f.Target)
			continue
		}
		out.Facts = append(out.Facts, ai.ExtractedFact{
			Source:    source,
			Target:    target,
			Relation:  strings.ToUpper(strings.TrimSpace(f.Relation)),
			Statement: strings.TrimSpace(f.Statement),
		})
	}

	return out
}
