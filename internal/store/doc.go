// Package store persists documents with their chunks, conversation turns and
// extracted entities.
//
// Two implementations exist: SQLite, backed by sqlx and go-sqlite3, and an
// in-memory store for tests and ephemeral runs. Both satisfy Store and feed
// the exhaustive searcher through Chunks.
package store
