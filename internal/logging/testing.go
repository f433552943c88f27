package logging

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry at trace level and above for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a logger whose entries are kept in memory.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, logs: logs}
}

// Entries returns the recorded entries.
func (t *TestLogger) Entries() []observer.LoggedEntry {
	return t.logs.All()
}

// Messages returns the recorded entries whose message contains substr.
func (t *TestLogger) Messages(substr string) []observer.LoggedEntry {
	return t.logs.FilterMessageSnippet(substr).All()
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return
		}
	}
	tb.Errorf("no %s entry containing %q in %d entries", level, substr, t.logs.Len())
}

// AssertNotLogged fails tb if any entry contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, substr string) {
	tb.Helper()
	if n := t.logs.FilterMessageSnippet(substr).Len(); n > 0 {
		tb.Errorf("found %d entries containing %q", n, substr)
	}
}

// AssertField fails tb unless an entry containing substr carries key with
// the given value, compared by its printed form.
func (t *TestLogger) AssertField(tb testing.TB, substr, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessageSnippet(substr).All() {
		if got, ok := e.ContextMap()[key]; ok && fmt.Sprint(got) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("no entry containing %q with %s=%v", substr, key, want)
}

var leakPatterns = compilePatterns(DefaultSecretPatterns)

// AssertNoSecrets fails tb if a recorded message or string field matches
// one of DefaultSecretPatterns.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	for _, e := range t.logs.All() {
		values := []string{e.Message}
		for _, f := range e.Context {
			if f.Type == zapcore.StringType {
				values = append(values, f.String)
			}
		}
		for _, v := range values {
			for _, re := range leakPatterns {
				if re.MatchString(v) {
					tb.Errorf("secret leaked in entry %q: %q", e.Message, v)
				}
			}
		}
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
