// Package embeddings turns text into fixed-length vectors.
//
// Four providers share the Embedder contract: an in-process ONNX model
// (fastembed-go, cgo builds only) and three REST services (OpenAI-style,
// Gemini-style and Ollama). A provider that cannot produce a vector returns
// an error; callers treat that as "no embedding" for the unit at hand.
//
// The local model is expensive to load, so it is wrapped in a LazyProvider
// that is created once by the application and handed to every ingestion.
package embeddings
