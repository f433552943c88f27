package sanitize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		allowedRoot string
		wantErr     error
	}{
		{name: "empty path", path: "", wantErr: ErrEmptyPath},
		{name: "relative path", path: "docs/report.pdf"},
		{name: "absolute path", path: "/tmp/report.pdf"},
		{name: "leading traversal", path: "../etc/passwd", wantErr: ErrPathTraversal},
		{name: "traversal in the middle", path: "docs/../../etc/passwd", wantErr: ErrPathTraversal},
		{name: "encoded slashes still contain dots", path: "docs/..%2fetc", wantErr: ErrPathTraversal},
		{name: "inside root", path: "/srv/docs/q3/report.pdf", allowedRoot: "/srv/docs"},
		{name: "root itself", path: "/srv/docs", allowedRoot: "/srv/docs"},
		{name: "sibling with shared prefix", path: "/srv/docs-private/a.txt", allowedRoot: "/srv/docs", wantErr: ErrPathTraversal},
		{name: "outside root", path: "/etc/passwd", allowedRoot: "/srv/docs", wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePath(tt.path, tt.allowedRoot)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
		})
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("# notes"), 0o600))

	got, err := ValidateFile(file, dir)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	_, err = ValidateFile(dir, "")
	assert.ErrorIs(t, err, ErrNotRegular)

	_, err = ValidateFile(filepath.Join(dir, "missing.md"), dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateGlobPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"simple glob", "*.md", false},
		{"directory glob", "drafts/**", false},
		{"traversal", "../**/*.md", true},
		{"semicolon", "*.md; rm -rf /", true},
		{"pipe", "*.md | cat", true},
		{"backtick", "*.`whoami`", true},
		{"runaway wildcards", "*****.md", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGlobPattern(tt.pattern)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPattern)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
