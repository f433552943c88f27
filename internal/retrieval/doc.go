// Package retrieval ranks stored chunks against a query.
//
// Similarity is cosine. Vectors of different dimensionality are never
// compared: a chunk embedded by another provider is simply not a candidate.
// A Retriever keeps only candidates scoring strictly above its threshold
// and returns at most TopK of them, best first. Retrieval never fails; when
// the query cannot be embedded or the searcher errors the result is empty.
package retrieval
