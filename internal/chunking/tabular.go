package chunking

import (
	"strings"
)

const missingValue = "N/A"

// Tabular renders delimited rows as "column: value" phrases. The first
// non-empty line is the header. Rows are bundled, one per line, until the
// next row would exceed Target.
type Tabular struct {
	Target int
	// Delimiter separates fields. Defaults to a comma.
	Delimiter string
}

// Split implements Splitter.
func (t Tabular) Split(text string) []string {
	delim := t.Delimiter
	if delim == "" {
		delim = ","
	}

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return hardSplit(strings.TrimSpace(text), t.Target)
	}

	headers := strings.Split(lines[0], delim)
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if s := strings.TrimRight(cur.String(), "\n"); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range lines[1:] {
		row := describeRow(headers, strings.Split(line, delim))
		n := size(row)
		if n > t.Target {
			flush()
			chunks = append(chunks, hardSplit(row, t.Target)...)
			continue
		}
		if curLen > 0 && curLen+n > t.Target {
			flush()
		}
		cur.WriteString(row)
		cur.WriteByte('\n')
		curLen += n + 1
	}
	flush()
	return chunks
}

func describeRow(headers, values []string) string {
	phrases := make([]string, len(headers))
	for i, h := range headers {
		v := missingValue
		if i < len(values) {
			if trimmed := strings.TrimSpace(values[i]); trimmed != "" {
				v = trimmed
			}
		}
		phrases[i] = h + ": " + v
	}
	return strings.Join(phrases, ", ")
}
