// Package mcp exposes ingestion, retrieval and entity extraction as Model
// Context Protocol tools.
//
// Tools are registered through the go-sdk (github.com/modelcontextprotocol/go-sdk/mcp)
// with typed inputs and outputs, so every tool publishes JSON schemas for
// both. Rarely used tools are marked defer_loading and can be found with
// tool_search.
package mcp
