package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

// Splitter splits text into chunk texts.
type Splitter interface {
	Split(text string) []string
}

// Result is the outcome of chunking one document.
type Result struct {
	// Chunks are the texts to embed, in document order.
	Chunks []string
	// Dropped counts chunks cut by the per-document cap.
	Dropped int
	// Discarded counts chunks shorter than the minimum length.
	Discarded int
}

// ForClass returns the splitter for a document class.
func ForClass(class document.Class, cfg document.RetrievalConfig) Splitter {
	cfg.ApplyDefaults()
	switch class.TextClass() {
	case document.ClassTabular:
		return Tabular{Target: cfg.TargetChunkSize}
	case document.ClassCode:
		return Code{Target: cfg.TargetChunkSize}
	default:
		return Prose{Target: cfg.TargetChunkSize, Overlap: cfg.OverlapPieces}
	}
}

// Chunk splits text with the strategy for class, keeps the first
// MaxChunksPerDocument chunks and then drops those shorter than
// MinChunkLength.
func Chunk(class document.Class, text string, cfg document.RetrievalConfig) Result {
	cfg.ApplyDefaults()

	pieces := ForClass(class, cfg).Split(text)

	var res Result
	if len(pieces) > cfg.MaxChunksPerDocument {
		res.Dropped = len(pieces) - cfg.MaxChunksPerDocument
		pieces = pieces[:cfg.MaxChunksPerDocument]
	}
	for _, p := range pieces {
		if size(strings.TrimSpace(p)) < cfg.MinChunkLength {
			res.Discarded++
			continue
		}
		res.Chunks = append(res.Chunks, p)
	}
	return res
}

func size(s string) int {
	return utf8.RuneCountInString(s)
}

// hardSplit bisects s at its rune midpoint until every piece fits target.
func hardSplit(s string, target int) []string {
	if size(s) <= target {
		return []string{s}
	}
	runes := []rune(s)
	mid := len(runes) / 2
	return append(hardSplit(string(runes[:mid]), target), hardSplit(string(runes[mid:]), target)...)
}
