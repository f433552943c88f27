// Package ignore reads gitignore-style files and decides which paths under a
// watched directory are skipped during ingestion.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

// DefaultFiles are the ignore files looked up in a directory.
var DefaultFiles = []string{".gitignore", ".docragignore"}

// DefaultFallback is used when a directory has no ignore file.
var DefaultFallback = []string{".git/", "node_modules/", "vendor/", "__pycache__/"}

// Rule is one parsed ignore pattern.
type Rule struct {
	Pattern string
	// DirOnly rules match directories and everything below them.
	DirOnly bool
	// Anchored rules match from the directory root instead of any level.
	Anchored bool
}

// Parser reads ignore files.
type Parser struct {
	Files    []string
	Fallback []string
}

// NewParser creates a parser. Nil arguments select the defaults.
func NewParser(files, fallback []string) *Parser {
	if files == nil {
		files = DefaultFiles
	}
	if fallback == nil {
		fallback = DefaultFallback
	}
	return &Parser{Files: files, Fallback: fallback}
}

// Load reads every ignore file in root and returns a matcher for paths
// relative to root. Without any ignore file the fallback patterns apply.
func (p *Parser) Load(root string) (*Matcher, error) {
	var lines []string
	found := false
	for _, name := range p.Files {
		fileLines, err := readLines(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
		found = true
	}
	if !found {
		lines = p.Fallback
	}
	return NewMatcher(lines), nil
}

func readLines(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// ParseLine parses one ignore file line. Comments, blank lines, negations
// and patterns with shell metacharacters yield ok == false.
func ParseLine(line string) (Rule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return Rule{}, false
	}
	if sanitize.ValidateGlobPattern(line) != nil {
		return Rule{}, false
	}

	var r Rule
	if strings.HasSuffix(line, "/**") {
		line = strings.TrimSuffix(line, "/**")
		r.DirOnly = true
	}
	if strings.HasSuffix(line, "/") {
		line = strings.TrimSuffix(line, "/")
		r.DirOnly = true
	}
	if strings.HasPrefix(line, "**/") {
		line = strings.TrimPrefix(line, "**/")
	} else if strings.HasPrefix(line, "/") {
		line = strings.TrimPrefix(line, "/")
		r.Anchored = true
	}
	if strings.Contains(line, "/") {
		r.Anchored = true
	}
	if line == "" {
		return Rule{}, false
	}
	r.Pattern = line
	return r, true
}

// Matcher reports whether relative paths are ignored.
type Matcher struct {
	rules []Rule
}

// NewMatcher builds a matcher from ignore file lines.
func NewMatcher(lines []string) *Matcher {
	m := &Matcher{}
	seen := make(map[Rule]bool)
	for _, line := range lines {
		r, ok := ParseLine(line)
		if !ok || seen[r] {
			continue
		}
		seen[r] = true
		m.rules = append(m.rules, r)
	}
	return m
}

// Rules returns the parsed rules in file order.
func (m *Matcher) Rules() []Rule {
	return m.rules
}

// Match reports whether rel, a slash or OS separated path relative to the
// matcher root, is ignored. A path is ignored when it or one of its parent
// directories matches a rule.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "" {
		return false
	}
	segs := strings.Split(rel, "/")
	last := len(segs) - 1

	for _, r := range m.rules {
		for i := range segs {
			var candidate string
			if r.Anchored {
				candidate = strings.Join(segs[:i+1], "/")
			} else {
				candidate = segs[i]
			}
			ok, err := path.Match(r.Pattern, candidate)
			if err != nil || !ok {
				continue
			}
			if i < last || isDir || !r.DirOnly {
				return true
			}
		}
	}
	return false
}
