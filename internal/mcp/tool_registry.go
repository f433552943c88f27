package mcp

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ToolCategory groups tools for discovery.
type ToolCategory string

const (
	// CategoryDocuments covers ingestion and document management.
	CategoryDocuments ToolCategory = "documents"
	// CategoryRetrieval covers similarity search and answering.
	CategoryRetrieval ToolCategory = "retrieval"
	// CategoryEntities covers structured extraction.
	CategoryEntities ToolCategory = "entities"
	// CategoryDiscovery covers tool_search and tool_list.
	CategoryDiscovery ToolCategory = "discovery"
)

// ToolMetadata describes a registered tool.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	// DeferLoading marks tools that clients should discover through
	// tool_search instead of loading up front.
	DeferLoading bool     `json:"defer_loading"`
	Keywords     []string `json:"keywords,omitempty"`
}

// ToolRegistry indexes tool metadata for search.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolMetadata)}
}

// Register adds or replaces a tool. Nil and unnamed tools are ignored.
func (r *ToolRegistry) Register(tool *ToolMetadata) {
	if tool == nil || tool.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get returns the metadata of name.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns the tools accepted by keep, sorted by name. A nil keep
// returns every tool.
func (r *ToolRegistry) List(keep func(*ToolMetadata) bool) []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		if keep == nil || keep(tool) {
			out = append(out, tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InCategory returns a List filter for category.
func InCategory(category ToolCategory) func(*ToolMetadata) bool {
	return func(t *ToolMetadata) bool { return t.Category == category }
}

// Deferred is a List filter for deferred tools.
func Deferred(t *ToolMetadata) bool { return t.DeferLoading }

// SearchResult is one search match. Score is 3 for an exact name match, 2
// for a name match and 1 for a description or keyword match.
type SearchResult struct {
	Tool        *ToolMetadata `json:"tool"`
	Score       int           `json:"score"`
	MatchReason string        `json:"match_reason"`
}

// Search matches query case-insensitively against names, descriptions and
// keywords. A query that compiles as a regular expression is also applied
// as one. Results are ordered by score, then name.
func (r *ToolRegistry) Search(query string, category ToolCategory) []*SearchResult {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	re, _ := regexp.Compile("(?i)" + query)
	matches := func(s string) bool {
		return strings.Contains(strings.ToLower(s), q) || (re != nil && re.MatchString(s))
	}

	var results []*SearchResult
	for _, tool := range r.List(nil) {
		if category != "" && tool.Category != category {
			continue
		}
		var res *SearchResult
		switch {
		case strings.ToLower(tool.Name) == q:
			res = &SearchResult{Score: 3, MatchReason: "exact name match"}
		case matches(tool.Name):
			res = &SearchResult{Score: 2, MatchReason: "name match"}
		case matches(tool.Description):
			res = &SearchResult{Score: 1, MatchReason: "description match"}
		default:
			for _, kw := range tool.Keywords {
				if matches(kw) {
					res = &SearchResult{Score: 1, MatchReason: "keyword match"}
					break
				}
			}
		}
		if res != nil {
			res.Tool = tool
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
