package chunking

import (
	"strings"
)

const fenceMarker = "```"

// Code splits source and markup line by line. A line that would push the
// chunk past Target flushes first. Outside a fenced block, a heading flushes
// a chunk that is already more than half the target.
type Code struct {
	Target int
}

// Split implements Splitter.
func (c Code) Split(text string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if s := strings.Trim(cur.String(), "\n"); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), fenceMarker) {
			inFence = !inFence
		}
		n := size(line)

		if n > c.Target {
			flush()
			chunks = append(chunks, hardSplit(line, c.Target)...)
			continue
		}
		if curLen+n > c.Target {
			flush()
		}
		if !inFence && strings.HasPrefix(line, "#") && curLen > c.Target/2 {
			flush()
		}

		cur.WriteString(line)
		cur.WriteByte('\n')
		curLen += n + 1
	}
	flush()
	return chunks
}
