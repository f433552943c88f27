// Package parser converts raw document bytes into reading-order text.
//
// Paginated documents are read as positioned text fragments per page and the
// page layout is reconstructed:
//
//  1. fragments whose y coordinates are within the line tolerance are grouped
//     into one line (first fit)
//  2. lines are ordered top of page first (descending y)
//  3. fragments within a line are ordered left to right (ascending x)
//  4. horizontal gaps are encoded as nothing, a single space, or a column
//     marker
//
// Pages are extracted concurrently and reassembled by page index. A page
// that fails contributes an empty string; only a document that cannot be
// opened at all is an error.
//
// Non-paginated documents are decoded as UTF-8 text verbatim.
package parser
