package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/parser")

const (
	defaultPageConcurrency = 8
	pageSeparator          = "\n\n"
	utf8BOM                = "\ufeff"
)

// Result is the outcome of extracting one document.
type Result struct {
	Text        string
	PageCount   int
	FailedPages []int
}

// Config configures an Extractor.
type Config struct {
	Layout LayoutOptions
	// PageConcurrency bounds the number of pages read at once.
	PageConcurrency int
	// Open opens paginated documents. Defaults to OpenPDF.
	Open Opener
}

// Extractor converts raw bytes into reading-order text.
type Extractor struct {
	layout      LayoutOptions
	concurrency int
	open        Opener
	logger      *zap.Logger
}

// NewExtractor creates an extractor. A nil logger disables logging.
func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Layout.applyDefaults()
	if cfg.PageConcurrency <= 0 {
		cfg.PageConcurrency = defaultPageConcurrency
	}
	if cfg.Open == nil {
		cfg.Open = OpenPDF
	}
	return &Extractor{
		layout:      cfg.Layout,
		concurrency: cfg.PageConcurrency,
		open:        cfg.Open,
		logger:      logger,
	}
}

// Extract returns the text of data according to its class.
func (e *Extractor) Extract(ctx context.Context, data []byte, class document.Class) (*Result, error) {
	if class != document.ClassPaginated {
		return &Result{Text: DecodeText(data)}, nil
	}

	ctx, span := tracer.Start(ctx, "Extractor.Extract")
	defer span.End()

	src, err := e.open(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := e.ExtractPages(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("pages", res.PageCount),
		attribute.Int("failed_pages", len(res.FailedPages)),
	)
	return res, nil
}

// page reconstructs one page. A panicking PageSource fails only that page.
func (e *Extractor) page(ctx context.Context, src PageSource, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page %d panicked: %v", n, rec)
		}
	}()
	frags, err := src.Fragments(ctx, n)
	if err != nil {
		return "", err
	}
	return ReconstructPage(frags, e.layout), nil
}

// ExtractPages reads every page of src concurrently and joins the
// reconstructed pages in page order with a blank line.
func (e *Extractor) ExtractPages(ctx context.Context, src PageSource) (*Result, error) {
	n := src.NumPages()
	texts := make([]string, n)
	failed := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			text, err := e.page(gctx, src, i+1)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed[i] = true
				e.logger.Warn("page extraction failed",
					zap.Int("page", i+1),
					zap.Error(err),
				)
				return nil
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting pages: %w", err)
	}

	res := &Result{
		Text:      strings.Join(texts, pageSeparator),
		PageCount: n,
	}
	for i, f := range failed {
		if f {
			res.FailedPages = append(res.FailedPages, i+1)
		}
	}
	return res, nil
}

// DecodeText decodes bytes as UTF-8, dropping a leading byte order mark and
// replacing invalid sequences with U+FFFD.
func DecodeText(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, utf8BOM)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return s
}
