// Package chunking splits cleaned text into bounded units for embedding.
//
// The strategy follows the document class:
//
//	tabular  rows rendered as "column: value" phrases, bundled up to the target size
//	code     line scan aware of fenced blocks and headings
//	prose    paragraph, then sentence, then line, then midpoint bisection
//
// Sizes are measured in runes. Every chunk a strategy emits is at most the
// target size; units longer than the target are bisected until they fit.
// Chunk applies the per-document cap before discarding short chunks, and
// reports both counts.
package chunking
