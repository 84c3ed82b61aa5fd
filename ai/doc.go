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


// Package ai provides abstractions for the AI services used in duograph.
//
// This package defines interfaces for text embedding and entity/relationship
// extraction. The ingestion and query layers depend on these abstractions
// rather than concrete implementations, so providers can be swapped and
// business logic can be tested without external AI services.
//
// The package is designed around three key interfaces:
//
//   - Embedder: generates vector embeddings from text
//   - FactExtractor: extracts entities and relationships from a text span
//   - AIProvider: aggregates AI services for convenient initialization
//
// Two implementation sub-packages are included:
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// interface types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockFactExtractor) return concrete types to
// enable behavior injection and call-count assertions.
//
// Usage:
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	extraction, err := provider.FactExtractor().Extract(ctx, "The Eiffel Tower is in Paris", "landmarks", time.Now())
package ai
