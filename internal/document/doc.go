// Package document defines the data model shared by the ingestion and
// retrieval pipeline: documents, their chunks, the document class that
// selects cleaning and chunking strategies, and the retrieval tunables.
//
// A Document owns its chunks exclusively. Chunk identity is the document id
// plus the ordinal index of the chunk, and an embedding, once attached, is
// never mutated.
package document
