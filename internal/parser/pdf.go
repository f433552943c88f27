package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageSource yields the positioned fragments of each page of a paginated
// document. Pages are numbered from 1. Implementations must allow Fragments
// to be called concurrently for different pages.
type PageSource interface {
	NumPages() int
	Fragments(ctx context.Context, page int) ([]Fragment, error)
}

// Opener opens a paginated document.
type Opener func(data []byte) (PageSource, error)

// ErrNoPages is returned when a paginated document has no pages.
var ErrNoPages = errors.New("parser: document has no pages")

// PDFSource reads text fragments from a PDF. Each page read uses its own
// reader over the shared immutable bytes so pages can be read in parallel.
type PDFSource struct {
	data  []byte
	pages int
}

// OpenPDF parses the PDF cross-reference table and returns a page source.
func OpenPDF(data []byte) (PageSource, error) {
	r, err := newPDFReader(data)
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}
	return &PDFSource{data: data, pages: n}, nil
}

func newPDFReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("opening pdf: %v", rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	return r, nil
}

// NumPages returns the page count.
func (s *PDFSource) NumPages() int {
	return s.pages
}

// Fragments returns the text runs of one page with their positions.
// Malformed content streams make the pdf library panic; that is reported as
// an error for the page.
func (s *PDFSource) Fragments(ctx context.Context, page int) (frags []Fragment, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			frags = nil
			err = fmt.Errorf("reading page %d: %v", page, rec)
		}
	}()

	r, err := newPDFReader(s.data)
	if err != nil {
		return nil, err
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", page)
	}

	content := p.Content()
	frags = make([]Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		frags = append(frags, Fragment{
			Text:  t.S,
			X:     t.X,
			Y:     t.Y,
			Width: t.W,
		})
	}
	return frags, nil
}
