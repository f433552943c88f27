package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Rule
		ok   bool
	}{
		{"empty line", "", Rule{}, false},
		{"whitespace only", "   ", Rule{}, false},
		{"comment", "# build outputs", Rule{}, false},
		{"negation skipped", "!keep.md", Rule{}, false},
		{"shell metacharacters skipped", "*.md; rm -rf /", Rule{}, false},
		{"file glob", "*.log", Rule{Pattern: "*.log"}, true},
		{"directory", "node_modules/", Rule{Pattern: "node_modules", DirOnly: true}, true},
		{"directory contents", "vendor/**", Rule{Pattern: "vendor", DirOnly: true}, true},
		{"rooted", "/dist", Rule{Pattern: "dist", Anchored: true}, true},
		{"nested path", "docs/drafts", Rule{Pattern: "docs/drafts", Anchored: true}, true},
		{"any level prefix", "**/build", Rule{Pattern: "build"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher([]string{"*.log", "drafts/", "/private", "notes/old/*.md"})

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"server.log", false, true},
		{"logs/today.log", false, true},
		{"report.pdf", false, false},
		{"drafts", true, true},
		{"drafts", false, false},
		{"team/drafts/plan.md", false, true},
		{"private/keys.txt", false, true},
		{"docs/private/keys.txt", false, false},
		{"notes/old/a.md", false, true},
		{"notes/new/a.md", false, false},
		{".", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.rel, tt.isDir))
		})
	}
}

func TestMatcher_NilMatchesNothing(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything.txt", false))
}

func TestParser_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("# outputs\ndist/\n*.tmp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docragignore"), []byte("dist/\nsecret.md\n"), 0o644))

	m, err := NewParser(nil, nil).Load(dir)
	require.NoError(t, err)

	assert.Len(t, m.Rules(), 3, "duplicate rules are dropped")
	assert.True(t, m.Match("dist/index.html", false))
	assert.True(t, m.Match("secret.md", false))
	assert.False(t, m.Match("readme.md", false))
}

func TestParser_LoadFallback(t *testing.T) {
	m, err := NewParser([]string{".gitignore"}, []string{"node_modules/"}).Load(t.TempDir())
	require.NoError(t, err)

	assert.True(t, m.Match("node_modules/pkg/readme.md", false))
	assert.False(t, m.Match("readme.md", false))
}
