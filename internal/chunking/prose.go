package chunking

import (
	"regexp"
	"strings"
)

var sentenceEndRegex = regexp.MustCompile(`[.?!]\s+`)

type granularity struct {
	split func(string) []string
	sep   string
}

var granularities = []granularity{
	{split: func(s string) []string { return strings.Split(s, "\n\n") }, sep: "\n\n"},
	{split: splitSentences, sep: " "},
	{split: func(s string) []string { return strings.Split(s, "\n") }, sep: "\n"},
}

// Prose splits text at the coarsest boundary that yields more than one piece
// (paragraphs, sentences, lines) and bundles the pieces greedily up to Target.
// Text with no boundary at all is bisected.
type Prose struct {
	Target int
	// Overlap is the number of trailing pieces of a flushed bundle that seed
	// the next one, as far as they fit.
	Overlap int
}

// Split implements Splitter.
func (p Prose) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size(text) <= p.Target {
		return []string{text}
	}
	for _, g := range granularities {
		if pieces := nonBlank(g.split(text)); len(pieces) > 1 {
			return p.bundle(pieces, g.sep)
		}
	}
	return hardSplit(text, p.Target)
}

func (p Prose) bundle(pieces []string, sep string) []string {
	sepLen := size(sep)

	var chunks []string
	var cur []string
	curLen := 0
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, sep))
		}
	}

	for _, piece := range pieces {
		n := size(piece)
		if n > p.Target {
			flush()
			cur, curLen = nil, 0
			chunks = append(chunks, p.Split(piece)...)
			continue
		}
		if len(cur) > 0 && curLen+sepLen+n > p.Target {
			flush()
			cur, curLen = p.carry(cur, sepLen, n)
		}
		if len(cur) > 0 {
			curLen += sepLen
		}
		cur = append(cur, piece)
		curLen += n
	}
	flush()
	return chunks
}

// carry returns the trailing pieces of a flushed bundle that seed the next
// one, leaving room for a following piece of length next.
func (p Prose) carry(prev []string, sepLen, next int) ([]string, int) {
	var kept []string
	total := 0
	for i := len(prev) - 1; i >= 0 && len(kept) < p.Overlap; i-- {
		n := size(prev[i]) + sepLen
		if total+n+next > p.Target {
			break
		}
		kept = append([]string{prev[i]}, kept...)
		total += n
	}
	if len(kept) == 0 {
		return nil, 0
	}
	return kept, total - sepLen
}

// splitSentences cuts after terminal punctuation followed by whitespace,
// dropping the whitespace.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEndRegex.FindAllStringIndex(s, -1) {
		out = append(out, s[start:loc[0]+1])
		start = loc[1]
	}
	return append(out, s[start:])
}

func nonBlank(pieces []string) []string {
	out := pieces[:0:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
