// Package redact removes credentials from document text before it is
// chunked, embedded or sent to a provider.
package redact

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Secret string
}

// Report summarizes the redactions applied to one text.
type Report struct {
	Total int            `json:"total"`
	Rules map[string]int `json:"rules,omitempty"`
}

// Scanner finds secrets in text.
type Scanner interface {
	Scan(text string) ([]Finding, error)
}

// GitleaksScanner scans with the default gitleaks rule set plus an
// allowlist. The detector is built once and reused.
type GitleaksScanner struct {
	allowlist *Allowlist

	once     sync.Once
	mu       sync.Mutex
	detector *detect.Detector
	initErr  error
}

// NewGitleaksScanner creates a scanner. A nil allowlist allows nothing.
func NewGitleaksScanner(allowlist *Allowlist) *GitleaksScanner {
	return &GitleaksScanner{allowlist: allowlist}
}

func (g *GitleaksScanner) init() {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		g.initErr = fmt.Errorf("loading gitleaks rules: %w", err)
		return
	}
	if g.allowlist != nil && len(g.allowlist.Regexes) > 0 {
		if err := applyAllowlist(&d.Config, g.allowlist); err != nil {
			g.initErr = err
			return
		}
	}
	g.detector = d
}

// Scan implements Scanner.
func (g *GitleaksScanner) Scan(text string) ([]Finding, error) {
	g.once.Do(g.init)
	if g.initErr != nil {
		return nil, g.initErr
	}

	g.mu.Lock()
	found := g.detector.DetectString(text)
	g.mu.Unlock()

	out := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		out = append(out, Finding{RuleID: f.RuleID, Secret: f.Secret})
	}
	return out, nil
}

func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) error {
	global := &gitleaksConfig.Allowlist{Description: "docrag allowlist"}
	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.Regexes...)
	cfg.Allowlists = append(cfg.Allowlists, global)
	return nil
}

// Redactor replaces secrets with [REDACTED:<rule>] markers. The marker keeps
// the kind of secret visible to retrieval without its value.
type Redactor struct {
	scanner   Scanner
	allowlist *Allowlist
	logger    *zap.Logger
}

// New creates a redactor. A nil scanner uses gitleaks with allowlist.
func New(scanner Scanner, allowlist *Allowlist, logger *zap.Logger) *Redactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if allowlist == nil {
		allowlist = &Allowlist{}
	}
	if scanner == nil {
		scanner = NewGitleaksScanner(allowlist)
	}
	return &Redactor{scanner: scanner, allowlist: allowlist, logger: logger}
}

// Redact returns text with every finding replaced. Documents whose name
// matches an allowlisted path are returned unchanged.
func (r *Redactor) Redact(name, text string) (string, Report, error) {
	if r.allowlist.MatchesPath(name) {
		return text, Report{}, nil
	}

	findings, err := r.scanner.Scan(text)
	if err != nil {
		return "", Report{}, err
	}
	if len(findings) == 0 {
		return text, Report{}, nil
	}

	// Longest first so a secret containing another is replaced whole.
	sort.SliceStable(findings, func(i, j int) bool {
		return len(findings[i].Secret) > len(findings[j].Secret)
	})

	report := Report{Rules: make(map[string]int)}
	for _, f := range findings {
		n := strings.Count(text, f.Secret)
		if n == 0 {
			continue
		}
		text = strings.ReplaceAll(text, f.Secret, marker(f.RuleID))
		report.Total += n
		report.Rules[f.RuleID] += n
	}

	if report.Total > 0 {
		r.logger.Info("secrets redacted",
			zap.String("document", name),
			zap.Int("count", report.Total),
		)
	}
	return text, report, nil
}

func marker(ruleID string) string {
	return "[REDACTED:" + ruleID + "]"
}
