package redact

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist exempts content and documents from redaction.
type Allowlist struct {
	// Paths are patterns matched against document names.
	Paths []string
	// Regexes are patterns matched against detected secrets.
	Regexes []string

	paths []*regexp.Regexp
}

// MatchesPath reports whether name is exempt.
func (a *Allowlist) MatchesPath(name string) bool {
	if a == nil {
		return false
	}
	for _, re := range a.paths {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// LoadAllowlist reads an allowlist file:
//
//	[allowlist]
//	paths = ['^fixtures/']
//	regexes = ['EXAMPLE_KEY']
//
// An empty or missing path yields an empty allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Allowlist{}, nil
	}

	var file struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	return NewAllowlist(file.Allowlist.Paths, file.Allowlist.Regexes)
}

// NewAllowlist validates the patterns and builds an allowlist.
func NewAllowlist(paths, regexes []string) (*Allowlist, error) {
	a := &Allowlist{Paths: paths, Regexes: regexes}
	for _, p := range paths {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: path pattern %q: %v", ErrInvalidRegex, p, err)
		}
		a.paths = append(a.paths, re)
	}
	for _, p := range regexes {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("%w: content pattern %q: %v", ErrInvalidRegex, p, err)
		}
	}
	return a, nil
}
