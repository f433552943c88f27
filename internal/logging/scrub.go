package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// scrubEncoder replaces credentials before they reach the wrapped encoder.
// Keys are matched case-insensitively; values are scanned only for string
// fields and the message.
type scrubEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newScrubEncoder(base zapcore.Encoder, keys, patterns []string) (*scrubEncoder, error) {
	enc := &scrubEncoder{Encoder: base, keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		enc.keys[strings.ToLower(k)] = struct{}{}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("secret pattern %q: %w", p, err)
		}
		enc.patterns = append(enc.patterns, re)
	}
	return enc, nil
}

func (e *scrubEncoder) secretKey(key string) bool {
	_, ok := e.keys[strings.ToLower(key)]
	return ok
}

func (e *scrubEncoder) scrub(s string) string {
	for _, re := range e.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

func (e *scrubEncoder) AddString(key, val string) {
	if e.secretKey(key) {
		val = redacted
	} else {
		val = e.scrub(val)
	}
	e.Encoder.AddString(key, val)
}

func (e *scrubEncoder) AddByteString(key string, val []byte) {
	if e.secretKey(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddString(key, e.scrub(string(val)))
}

func (e *scrubEncoder) AddBinary(key string, val []byte) {
	if e.secretKey(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddBinary(key, val)
}

func (e *scrubEncoder) AddReflected(key string, val any) error {
	if e.secretKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *scrubEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.secretKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *scrubEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.secretKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *scrubEncoder) Clone() zapcore.Encoder {
	return &scrubEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
	}
}

// EncodeEntry scrubs the message and the fields passed with the entry.
// Fields added through With were scrubbed when they were added.
func (e *scrubEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	ent.Message = e.scrub(ent.Message)
	clean := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case e.secretKey(f.Key):
			clean[i] = zap.String(f.Key, redacted)
		case f.Type == zapcore.StringType:
			clean[i] = zap.String(f.Key, e.scrub(f.String))
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				clean[i] = zap.String(f.Key, e.scrub(err.Error()))
			} else {
				clean[i] = f
			}
		default:
			clean[i] = f
		}
	}
	return e.Encoder.EncodeEntry(ent, clean)
}
