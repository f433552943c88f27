// Package vectorstore provides indexed searchers for chunk embeddings.
//
// Every index keeps one collection per embedding dimension, named
// "<prefix>_<dim>". A query only ever reaches the collection of its own
// dimension, so vectors produced by different embedding providers are never
// compared with each other.
//
// Three backends are available:
//
//   - exhaustive: no index; every query scores the chunks held by the
//     document store. This is the default and needs no setup.
//   - chromem: an embedded, persistent index (github.com/philippgille/chromem-go).
//   - qdrant: a remote Qdrant server over gRPC (github.com/qdrant/go-client).
//
// The document store stays the source of truth. Indexes can be rebuilt
// from it at any time with Rebuild.
package vectorstore
