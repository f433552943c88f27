// Package cleaning normalizes extracted text before chunking.
//
// Each document class gets its own treatment:
//
//   - Prose is repaired: hyphenated line wraps are rejoined, page number lines
//     and "Page N of M" footers are removed, runs of horizontal whitespace are
//     collapsed and soft-wrapped lines are rejoined.
//   - Code and markup keep their layout. Only replacement characters and NUL
//     bytes are removed.
//   - Tabular text is returned untouched; the tabular chunker reads raw rows.
package cleaning
