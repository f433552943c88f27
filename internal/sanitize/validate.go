// Package sanitize validates untrusted paths and patterns before they reach
// the filesystem.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrPathTraversal is returned for paths with ".." or paths outside the
	// allowed root.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrInvalidPattern is returned for glob patterns with shell
	// metacharacters or runaway wildcards.
	ErrInvalidPattern = errors.New("invalid or dangerous pattern")

	// ErrEmptyPath is returned for an empty path.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrNotRegular is returned when a path names something other than a
	// regular file.
	ErrNotRegular = errors.New("not a regular file")
)

var dangerousPatternChars = regexp.MustCompile(`[;\|\$\x60\\<>&\(\)\{\}]|\.{3,}|\*{3,}`)

// ValidatePath returns the absolute form of path. Paths containing ".." are
// rejected outright. With a non-empty allowedRoot the path must also resolve
// inside that directory.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if allowedRoot == "" {
		return abs, nil
	}

	root, err := filepath.Abs(allowedRoot)
	if err != nil {
		return "", fmt.Errorf("resolving allowed root: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrPathTraversal, abs, root)
	}
	return abs, nil
}

// ValidateFile validates path like ValidatePath and checks that it names a
// regular file.
func ValidateFile(path, allowedRoot string) (string, error) {
	abs, err := ValidatePath(path, allowedRoot)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotRegular, abs)
	}
	return abs, nil
}

// ValidateGlobPattern rejects patterns that could be abused by a shell or
// that do not compile. The empty pattern is valid.
func ValidateGlobPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	if dangerousPatternChars.MatchString(pattern) {
		return fmt.Errorf("%w: contains dangerous characters", ErrInvalidPattern)
	}
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("%w: contains path traversal", ErrInvalidPattern)
	}
	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return nil
}
