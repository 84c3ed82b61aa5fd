// Package openai implements the ai service interfaces against
// OpenAI-compatible HTTP APIs (OpenAI, Ollama, LocalAI, vLLM).
//
// Embeddings use the provider's embedding endpoint; fact extraction uses the
// chat endpoint in JSON mode with a schema-constrained prompt, with light
// repair of the malformed JSON smaller local models occasionally emit.
package openai
