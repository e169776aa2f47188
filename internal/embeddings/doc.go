// Package embeddings turns text into vectors for the chunk index.
//
// Providers: FastEmbed (local ONNX, CGO builds only), TEI over HTTP, OpenAI
// and Ollama through langchaingo, and a deterministic feature-hashing
// provider for offline use. NewProvider selects one from configuration.
package embeddings
