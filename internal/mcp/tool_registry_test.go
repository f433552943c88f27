package mcp

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *ToolRegistry {
	t.Helper()
	registry := NewToolRegistry()
	for _, tool := range []*ToolMetadata{
		{Name: "ingest_file", Description: "Ingest a local file", Category: CategoryDocuments, Keywords: []string{"upload", "pdf"}},
		{Name: "delete_document", Description: "Remove a document", Category: CategoryDocuments, DeferLoading: true},
		{Name: "search", Description: "Find similar passages", Category: CategoryRetrieval},
		{Name: "tool_search", Description: "Search the available tools", Category: CategoryDiscovery},
		{Name: "extract_entities", Description: "Extract entities", Category: CategoryEntities, DeferLoading: true, Keywords: []string{"graph"}},
	} {
		registry.Register(tool)
	}
	require.Equal(t, 5, registry.Count())
	return registry
}

func toolNames(tools []*ToolMetadata) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

func resultNames(results []*SearchResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Tool.Name)
	}
	return names
}

func TestToolRegistry_Register(t *testing.T) {
	registry := NewToolRegistry()

	tool := &ToolMetadata{
		Name:        "search",
		Description: "Find similar passages",
		Category:    CategoryRetrieval,
		Keywords:    []string{"find"},
	}
	registry.Register(tool)

	got, ok := registry.Get("search")
	require.True(t, ok)
	assert.Equal(t, tool, got)

	// Re-registering replaces.
	registry.Register(&ToolMetadata{Name: "search", Description: "updated", Category: CategoryRetrieval})
	got, _ = registry.Get("search")
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, 1, registry.Count())

	// Invalid tools are ignored.
	registry.Register(nil)
	registry.Register(&ToolMetadata{Description: "no name"})
	assert.Equal(t, 1, registry.Count())

	_, ok = registry.Get("missing")
	assert.False(t, ok)
}

func TestToolRegistry_List(t *testing.T) {
	registry := newTestRegistry(t)

	tests := []struct {
		name string
		keep func(*ToolMetadata) bool
		want []string
	}{
		{"all sorted by name", nil, []string{"delete_document", "extract_entities", "ingest_file", "search", "tool_search"}},
		{"documents", InCategory(CategoryDocuments), []string{"delete_document", "ingest_file"}},
		{"discovery", InCategory(CategoryDiscovery), []string{"tool_search"}},
		{"deferred", Deferred, []string{"delete_document", "extract_entities"}},
		{"unknown category", InCategory("missing"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toolNames(registry.List(tt.keep)))
		})
	}
}

func TestToolRegistry_Search(t *testing.T) {
	registry := newTestRegistry(t)

	tests := []struct {
		name      string
		query     string
		category  ToolCategory
		want      []string
		topScore  int
		topReason string
	}{
		{
			name:      "exact name ranks first",
			query:     "search",
			want:      []string{"search", "tool_search"},
			topScore:  3,
			topReason: "exact name match",
		},
		{
			name:      "case insensitive",
			query:     "INGEST",
			want:      []string{"ingest_file"},
			topScore:  2,
			topReason: "name match",
		},
		{
			name:      "description match",
			query:     "passages",
			want:      []string{"search"},
			topScore:  1,
			topReason: "description match",
		},
		{
			name:      "keyword match",
			query:     "pdf",
			want:      []string{"ingest_file"},
			topScore:  1,
			topReason: "keyword match",
		},
		{
			name:     "regex",
			query:    "^(ingest|delete)_",
			want:     []string{"delete_document", "ingest_file"},
			topScore: 2,
		},
		{
			name:     "category filter",
			query:    "search",
			category: CategoryDiscovery,
			want:     []string{"tool_search"},
			topScore: 2,
		},
		{
			name:  "no match",
			query: "checkpoint",
			want:  []string{},
		},
		{
			name:  "invalid regex falls back to substring",
			query: "search(",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := registry.Search(tt.query, tt.category)
			assert.Equal(t, tt.want, resultNames(results))
			if len(results) == 0 {
				return
			}
			assert.Equal(t, tt.topScore, results[0].Score)
			if tt.topReason != "" {
				assert.Equal(t, tt.topReason, results[0].MatchReason)
			}
		})
	}
}

func TestToolRegistry_EmptySearch(t *testing.T) {
	registry := newTestRegistry(t)
	assert.Empty(t, registry.Search("", ""))
}

func TestToolRegistry_ConcurrentAccess(t *testing.T) {
	registry := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = registry.Search("search", "")
			_ = registry.List(Deferred)
			_ = registry.Count()
		}()
		go func(i int) {
			defer wg.Done()
			registry.Register(&ToolMetadata{
				Name:     fmt.Sprintf("concurrent_%d", i),
				Category: CategoryDiscovery,
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 55, registry.Count())
}
