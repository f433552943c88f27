package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

// registerTools registers every tool with the server and the registry.
func (s *Server) registerTools() {
	addTool(s, ToolMetadata{
		Name:        "ingest_file",
		Description: "Ingest a local file (pdf, csv, text, markdown, json, html or source code) so it can be searched. Re-ingesting a path replaces the earlier version.",
		Category:    CategoryDocuments,
		Keywords:    []string{"upload", "add", "index", "pdf"},
	}, s.ingestFile)

	addTool(s, ToolMetadata{
		Name:        "ingest_text",
		Description: "Ingest text passed inline under a document name.",
		Category:    CategoryDocuments,
		Keywords:    []string{"upload", "add", "paste"},
	}, s.ingestText)

	addTool(s, ToolMetadata{
		Name:        "list_documents",
		Description: "List ingested documents with their status and chunk counts.",
		Category:    CategoryDocuments,
	}, s.listDocuments)

	addTool(s, ToolMetadata{
		Name:         "delete_document",
		Description:  "Remove a document and its chunks from the index.",
		Category:     CategoryDocuments,
		DeferLoading: true,
		Keywords:     []string{"remove", "forget"},
	}, s.deleteDocument)

	addTool(s, ToolMetadata{
		Name:        "search",
		Description: "Find the passages most similar to a query across all ingested documents.",
		Category:    CategoryRetrieval,
		Keywords:    []string{"similarity", "lookup", "find"},
	}, s.search)

	addTool(s, ToolMetadata{
		Name:        "ask",
		Description: "Answer a question from the ingested documents with an optional persona. The reply cites the passages it used.",
		Category:    CategoryRetrieval,
		Keywords:    []string{"question", "chat", "answer", "persona"},
	}, s.ask)

	addTool(s, ToolMetadata{
		Name:         "list_personas",
		Description:  "List the personas available to ask.",
		Category:     CategoryRetrieval,
		DeferLoading: true,
	}, s.listPersonas)

	addTool(s, ToolMetadata{
		Name:         "extract_entities",
		Description:  "Extract people, concepts, locations, dates and metrics from documents and store them.",
		Category:     CategoryEntities,
		DeferLoading: true,
		Keywords:     []string{"graph", "ner", "knowledge"},
	}, s.extractEntities)

	addTool(s, ToolMetadata{
		Name:         "list_entities",
		Description:  "List stored entities.",
		Category:     CategoryEntities,
		DeferLoading: true,
	}, s.listEntities)

	addTool(s, ToolMetadata{
		Name:        "tool_search",
		Description: "Search the available tools by name, description or keyword. Accepts regular expressions.",
		Category:    CategoryDiscovery,
	}, s.toolSearch)

	addTool(s, ToolMetadata{
		Name:        "tool_list",
		Description: "List the available tools with their metadata.",
		Category:    CategoryDiscovery,
	}, s.toolList)
}

// ===== DOCUMENT TOOLS =====

type documentInfo struct {
	ID            string `json:"id" jsonschema:"Document ID"`
	Name          string `json:"name" jsonschema:"File name"`
	Class         string `json:"class" jsonschema:"Document class"`
	Status        string `json:"status" jsonschema:"Processing status"`
	Chunks        int    `json:"chunks" jsonschema:"Number of indexed chunks"`
	DroppedChunks int    `json:"dropped_chunks" jsonschema:"Chunks beyond the per-document limit"`
	SizeBytes     int64  `json:"size_bytes" jsonschema:"Original size in bytes"`
}

func newDocumentInfo(d *document.Document) documentInfo {
	return documentInfo{
		ID:            d.ID,
		Name:          d.Name,
		Class:         string(d.Class),
		Status:        string(d.Status),
		Chunks:        len(d.Chunks),
		DroppedChunks: d.DroppedChunks,
		SizeBytes:     d.SizeBytes,
	}
}

type ingestFileInput struct {
	Path string `json:"path" jsonschema:"Path of the file to ingest"`
}

type ingestTextInput struct {
	Name    string `json:"name" jsonschema:"Document name; its extension selects the parser"`
	Content string `json:"content" jsonschema:"Document text"`
}

type listDocumentsInput struct{}

type listDocumentsOutput struct {
	Documents []documentInfo `json:"documents" jsonschema:"Ingested documents"`
	Count     int            `json:"count" jsonschema:"Number of documents"`
}

type deleteDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"ID of the document to delete"`
}

type deleteDocumentOutput struct {
	Deleted string `json:"deleted" jsonschema:"ID of the deleted document"`
}

func (s *Server) ingestFile(ctx context.Context, in ingestFileInput) (documentInfo, string, error) {
	path, err := sanitize.ValidateFile(in.Path, s.root)
	if err != nil {
		return documentInfo{}, "", fmt.Errorf("invalid path: %w", err)
	}
	doc, err := s.app.IngestFile(ctx, path)
	if err != nil {
		return documentInfo{}, "", fmt.Errorf("ingesting %s: %w", path, err)
	}
	return newDocumentInfo(doc), fmt.Sprintf("Ingested %s: %d chunks", doc.Name, len(doc.Chunks)), nil
}

func (s *Server) ingestText(ctx context.Context, in ingestTextInput) (documentInfo, string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return documentInfo{}, "", fmt.Errorf("name is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return documentInfo{}, "", app.ErrEmptyInput
	}
	doc, err := s.app.Ingest(ctx, ingest.Task{Name: in.Name, Data: []byte(in.Content)})
	if err != nil {
		return documentInfo{}, "", fmt.Errorf("ingesting %s: %w", in.Name, err)
	}
	return newDocumentInfo(doc), fmt.Sprintf("Ingested %s: %d chunks", doc.Name, len(doc.Chunks)), nil
}

func (s *Server) listDocuments(ctx context.Context, _ listDocumentsInput) (listDocumentsOutput, string, error) {
	docs, err := s.app.Documents(ctx)
	if err != nil {
		return listDocumentsOutput{}, "", err
	}
	out := listDocumentsOutput{Documents: make([]documentInfo, 0, len(docs)), Count: len(docs)}
	for _, d := range docs {
		out.Documents = append(out.Documents, newDocumentInfo(d))
	}
	return out, fmt.Sprintf("%d documents", out.Count), nil
}

func (s *Server) deleteDocument(ctx context.Context, in deleteDocumentInput) (deleteDocumentOutput, string, error) {
	if in.DocumentID == "" {
		return deleteDocumentOutput{}, "", fmt.Errorf("document_id is required")
	}
	if err := s.app.DeleteDocument(ctx, in.DocumentID); err != nil {
		return deleteDocumentOutput{}, "", err
	}
	return deleteDocumentOutput{Deleted: in.DocumentID}, "Deleted " + in.DocumentID, nil
}

// ===== RETRIEVAL TOOLS =====

type passage struct {
	ChunkID    string  `json:"chunk_id" jsonschema:"Chunk ID"`
	DocumentID string  `json:"document_id" jsonschema:"Owning document ID"`
	Source     string  `json:"source,omitempty" jsonschema:"Source file name"`
	Text       string  `json:"text" jsonschema:"Chunk text"`
	Score      float64 `json:"score" jsonschema:"Cosine similarity to the query"`
}

func newPassages(hits []retrieval.Scored) []passage {
	out := make([]passage, 0, len(hits))
	for _, h := range hits {
		out = append(out, passage{
			ChunkID:    h.Chunk.ID,
			DocumentID: h.Chunk.DocumentID,
			Source:     h.Chunk.Source,
			Text:       h.Chunk.Text,
			Score:      h.Score,
		})
	}
	return out
}

type searchInput struct {
	Query string `json:"query" jsonschema:"Natural language query"`
}

type searchOutput struct {
	Results []passage `json:"results" jsonschema:"Matching passages, best first"`
	Count   int       `json:"count" jsonschema:"Number of passages"`
}

type askInput struct {
	Question string `json:"question" jsonschema:"Question to answer"`
	Persona  string `json:"persona,omitempty" jsonschema:"Persona name (default: analyst)"`
}

type askOutput struct {
	Answer    string    `json:"answer" jsonschema:"Generated answer"`
	Citations []string  `json:"citations" jsonschema:"IDs of the chunks given to the model"`
	Sources   []passage `json:"sources" jsonschema:"Passages given to the model"`
}

type listPersonasInput struct{}

type personaInfo struct {
	Name        string `json:"name" jsonschema:"Persona name"`
	Label       string `json:"label" jsonschema:"Display label"`
	Description string `json:"description" jsonschema:"What the persona does"`
}

type listPersonasOutput struct {
	Personas []personaInfo `json:"personas" jsonschema:"Available personas"`
}

func (s *Server) search(ctx context.Context, in searchInput) (searchOutput, string, error) {
	hits, err := s.app.Search(ctx, in.Query)
	if err != nil {
		return searchOutput{}, "", err
	}
	out := searchOutput{Results: newPassages(hits), Count: len(hits)}
	if out.Count == 0 {
		return out, "No relevant passages found", nil
	}
	var b strings.Builder
	for i, p := range out.Results {
		fmt.Fprintf(&b, "[%d] %s (%.2f): %s\n", i+1, p.Source, p.Score, p.Text)
	}
	return out, b.String(), nil
}

func (s *Server) ask(ctx context.Context, in askInput) (askOutput, string, error) {
	answer, err := s.app.Chat(ctx, in.Question, in.Persona)
	if err != nil {
		return askOutput{}, "", err
	}
	out := askOutput{
		Answer:    answer.Reply.Content,
		Citations: answer.Reply.Citations,
		Sources:   newPassages(answer.Sources),
	}
	if out.Citations == nil {
		out.Citations = []string{}
	}
	return out, out.Answer, nil
}

func (s *Server) listPersonas(_ context.Context, _ listPersonasInput) (listPersonasOutput, string, error) {
	personas := s.app.Personas()
	out := listPersonasOutput{Personas: make([]personaInfo, 0, len(personas))}
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		out.Personas = append(out.Personas, personaInfo{Name: p.Name, Label: p.Label, Description: p.Description})
		names = append(names, p.Name)
	}
	return out, strings.Join(names, ", "), nil
}

// ===== ENTITY TOOLS =====

type entityInfo struct {
	ID          string `json:"id" jsonschema:"Entity ID"`
	Name        string `json:"name" jsonschema:"Entity name"`
	Type        string `json:"type" jsonschema:"PERSON, CONCEPT, LOCATION, DATE or METRIC"`
	Description string `json:"description" jsonschema:"Short description"`
	SourceDoc   string `json:"source_doc,omitempty" jsonschema:"ID of the document it came from"`
}

func newEntityInfos(entities []extraction.Entity) []entityInfo {
	out := make([]entityInfo, 0, len(entities))
	for _, e := range entities {
		out = append(out, entityInfo{
			ID:          e.ID,
			Name:        e.Name,
			Type:        string(e.Type),
			Description: e.Description,
			SourceDoc:   e.SourceDoc,
		})
	}
	return out
}

type extractEntitiesInput struct {
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"Documents to read; all ready documents when empty"`
}

type listEntitiesInput struct{}

type entitiesOutput struct {
	Entities []entityInfo `json:"entities" jsonschema:"Entities"`
	Count    int          `json:"count" jsonschema:"Number of entities"`
}

func (s *Server) extractEntities(ctx context.Context, in extractEntitiesInput) (entitiesOutput, string, error) {
	entities, err := s.app.Extract(ctx, in.DocumentIDs)
	if err != nil {
		return entitiesOutput{}, "", err
	}
	return entitiesOutput{Entities: newEntityInfos(entities), Count: len(entities)},
		fmt.Sprintf("Extracted %d entities", len(entities)), nil
}

func (s *Server) listEntities(ctx context.Context, _ listEntitiesInput) (entitiesOutput, string, error) {
	entities, err := s.app.Entities(ctx)
	if err != nil {
		return entitiesOutput{}, "", err
	}
	return entitiesOutput{Entities: newEntityInfos(entities), Count: len(entities)},
		fmt.Sprintf("%d entities", len(entities)), nil
}

// ===== DISCOVERY TOOLS =====

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Text or regular expression matched against tool names, descriptions and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Restrict to documents, retrieval, entities or discovery"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results (default: 5)"`
}

type toolSearchOutput struct {
	Query      string         `json:"query" jsonschema:"Search query used"`
	Results    []ToolMetadata `json:"results" jsonschema:"Matching tools, best first"`
	Count      int            `json:"count" jsonschema:"Number of tools found"`
	TotalTools int            `json:"total_tools" jsonschema:"Total number of tools"`
}

type toolListInput struct {
	Category     string `json:"category,omitempty" jsonschema:"Restrict to one category"`
	DeferredOnly bool   `json:"deferred_only,omitempty" jsonschema:"Only list deferred tools"`
}

type toolListOutput struct {
	Tools []ToolMetadata `json:"tools" jsonschema:"Registered tools"`
	Count int            `json:"count" jsonschema:"Number of tools returned"`
}

func (s *Server) toolSearch(_ context.Context, in toolSearchInput) (toolSearchOutput, string, error) {
	if in.Query == "" {
		return toolSearchOutput{}, "", fmt.Errorf("query is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 5
	}

	found := s.registry.Search(in.Query, ToolCategory(in.Category))
	if len(found) > limit {
		found = found[:limit]
	}
	out := toolSearchOutput{
		Query:      in.Query,
		Results:    make([]ToolMetadata, 0, len(found)),
		TotalTools: s.registry.Count(),
	}
	names := make([]string, 0, len(found))
	for _, r := range found {
		out.Results = append(out.Results, *r.Tool)
		names = append(names, r.Tool.Name)
	}
	out.Count = len(out.Results)

	if out.Count == 0 {
		return out, "No tools found matching: " + in.Query, nil
	}
	return out, fmt.Sprintf("Found %d tool(s): %s", out.Count, strings.Join(names, ", ")), nil
}

func (s *Server) toolList(_ context.Context, in toolListInput) (toolListOutput, string, error) {
	var keep func(*ToolMetadata) bool
	switch {
	case in.Category != "":
		keep = InCategory(ToolCategory(in.Category))
	case in.DeferredOnly:
		keep = Deferred
	}
	tools := s.registry.List(keep)
	out := toolListOutput{Tools: make([]ToolMetadata, 0, len(tools))}
	for _, t := range tools {
		out.Tools = append(out.Tools, *t)
	}
	out.Count = len(out.Tools)
	return out, fmt.Sprintf("Found %d tools", out.Count), nil
}
