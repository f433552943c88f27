package logging

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docrag/internal/config"
)

// TraceLevel sits below debug and logs wire-level detail such as request
// bodies sent to providers.
const TraceLevel = zapcore.Level(-2)

// Sampling limits repeated entries below warn level. Within each Tick the
// first Initial entries with a given message are logged, then every
// Thereafter-th. A zero Tick disables sampling.
type Sampling struct {
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// Config configures NewLogger.
type Config struct {
	Level zapcore.Level
	// Format is json or console.
	Format string
	// Stderr writes to stderr instead of stdout.
	Stderr bool
	// OTEL forwards entries to the log provider given to NewLogger.
	OTEL bool
	// Service is attached to every entry and names the otelzap scope.
	Service  string
	Sampling Sampling
	// SecretKeys are field keys whose values are always replaced.
	SecretKeys []string
	// SecretPatterns are regular expressions for string values that are
	// replaced wherever they appear.
	SecretPatterns []string
}

// DefaultSecretKeys lists the credential field names used across docrag.
var DefaultSecretKeys = []string{
	"api_key", "gemini_key", "openai_key", "openrouter_key", "qdrant_api_key",
	"authorization", "x-goog-api-key", "password", "token", "secret",
}

// DefaultSecretPatterns match bearer headers and the key formats of the
// supported providers.
var DefaultSecretPatterns = []string{
	`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`,
	`AIza[0-9A-Za-z_-]{35}`,
	`sk-[A-Za-z0-9_-]{20,}`,
}

// DefaultConfig returns the daemon defaults: info level JSON on stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:   zapcore.InfoLevel,
		Format:  "json",
		Service: "docrag",
		Sampling: Sampling{
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		SecretKeys:     append([]string(nil), DefaultSecretKeys...),
		SecretPatterns: append([]string(nil), DefaultSecretPatterns...),
	}
}

// FromConfig applies the logging section of the configuration file on top
// of DefaultConfig.
func FromConfig(c config.LoggingConfig) (*Config, error) {
	cfg := DefaultConfig()
	if c.Level != "" {
		lvl, err := ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	if c.Format != "" {
		cfg.Format = c.Format
	}
	return cfg, cfg.Validate()
}

// ParseLevel parses a level name. Besides zap's names it accepts "trace".
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.EqualFold(strings.TrimSpace(s), "trace") {
		return TraceLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be json or console, got %q", c.Format))
	}
	if c.Sampling.Tick < 0 || c.Sampling.Initial < 0 || c.Sampling.Thereafter < 0 {
		errs = append(errs, errors.New("sampling values must not be negative"))
	}
	for _, p := range c.SecretPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("secret pattern %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
