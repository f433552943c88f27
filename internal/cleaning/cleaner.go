package cleaning

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

var (
	hyphenWrapRegex = regexp.MustCompile(`(\w)-\n(\w)`)
	pageNumberRegex = regexp.MustCompile(`\n\s*-?\s*\d+\s*-?\s*\n`)
	pageFooterRegex = regexp.MustCompile(`(?i)Page \d+ of \d+`)
	hspaceRegex     = regexp.MustCompile(`[ \t]+`)
	softWrapRegex   = regexp.MustCompile(`([a-z,])\n([a-z])`)
)

// codeNoise is removed from code and markup.
var codeNoise = strings.NewReplacer("\uFFFD", "", "\x00", "")

// Clean normalizes text according to its document class. Paginated documents
// are cleaned as prose.
func Clean(class document.Class, text string) string {
	switch class.TextClass() {
	case document.ClassTabular:
		return text
	case document.ClassCode:
		return CleanCode(text)
	default:
		return CleanProse(text)
	}
}

// CleanProse repairs text that was wrapped and paginated for print.
func CleanProse(text string) string {
	text = hyphenWrapRegex.ReplaceAllString(text, "${1}${2}")
	text = pageNumberRegex.ReplaceAllString(text, "\n")
	text = pageFooterRegex.ReplaceAllString(text, "")
	text = hspaceRegex.ReplaceAllString(text, " ")
	return softWrapRegex.ReplaceAllString(text, "${1} ${2}")
}

// CleanCode removes replacement characters and NUL bytes. Indentation and
// newlines are preserved exactly.
func CleanCode(text string) string {
	return codeNoise.Replace(text)
}
