package document

import (
	"path/filepath"
	"strings"
)

// Class selects the extraction, cleaning and chunking strategy for a document.
type Class string

const (
	// ClassPaginated is a positioned-fragment document such as a PDF.
	ClassPaginated Class = "paginated"
	// ClassTabular is delimited tabular text.
	ClassTabular Class = "tabular"
	// ClassCode is source code or markup.
	ClassCode Class = "code"
	// ClassProse is plain text.
	ClassProse Class = "prose"
)

var codeExtensions = map[string]bool{
	"js": true, "ts": true, "tsx": true, "jsx": true, "py": true, "json": true,
	"html": true, "css": true, "md": true, "go": true, "yaml": true, "yml": true,
	"sh": true, "rs": true, "java": true,
}

// Classify determines the class of a document from its name and declared
// MIME type. The MIME type wins for PDF and CSV; otherwise the extension
// decides, falling back to prose.
func Classify(name, mimeHint string) Class {
	mime := strings.ToLower(strings.TrimSpace(mimeHint))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")

	switch {
	case mime == "application/pdf" || ext == "pdf":
		return ClassPaginated
	case mime == "text/csv" || ext == "csv":
		return ClassTabular
	case codeExtensions[ext]:
		return ClassCode
	default:
		return ClassProse
	}
}

// TextClass returns the class used to clean and chunk text extracted from a
// document of class c. Paginated documents are treated as prose once their
// layout has been reconstructed.
func (c Class) TextClass() Class {
	if c == ClassPaginated {
		return ClassProse
	}
	return c
}

// Label returns the short upper-case label used in progress messages.
func Label(name string, c Class) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext != "" {
		return strings.ToUpper(ext)
	}
	return strings.ToUpper(string(c))
}
