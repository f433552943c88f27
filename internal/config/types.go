package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration decoded from strings such as "500ms" in the
// YAML file and in environment overrides.
type Duration time.Duration

// UnmarshalText parses a non-negative Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration the way it is parsed.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

const redactedSecret = "[REDACTED]"

// Secret holds a provider credential. Every printed or serialized form is
// redacted; only Value returns the credential.
type Secret string

// Value returns the credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential is present.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) redacted() string {
	if s == "" {
		return ""
	}
	return redactedSecret
}

// String implements fmt.Stringer.
func (s Secret) String() string { return s.redacted() }

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string { return fmt.Sprintf("config.Secret(%q)", s.redacted()) }

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.redacted()) }

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.redacted()), nil }

// UnmarshalText stores the raw credential.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
