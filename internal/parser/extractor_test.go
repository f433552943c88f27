package parser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

// fakeSource serves pages from memory. Pages listed in fail return an error;
// delays make later pages finish first.
type fakeSource struct {
	pages    [][]Fragment
	fail     map[int]bool
	panics   map[int]bool
	delay    map[int]time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSource) NumPages() int { return len(f.pages) }

func (f *fakeSource) Fragments(ctx context.Context, page int) ([]Fragment, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	if d := f.delay[page]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[page] {
		return nil, errors.New("corrupt content stream")
	}
	if f.panics[page] {
		panic("index out of range in content stream")
	}
	return f.pages[page-1], nil
}

func onePage(text string, y float64) []Fragment {
	return []Fragment{{Text: text, X: 10, Y: y, Width: float64(len(text)) * 5}}
}

func TestExtractor_ExtractPages(t *testing.T) {
	t.Run("pages are joined in index order regardless of completion order", func(t *testing.T) {
		src := &fakeSource{
			pages: [][]Fragment{onePage("page one", 700), onePage("page two", 700), onePage("page three", 700)},
			delay: map[int]time.Duration{1: 30 * time.Millisecond, 2: 10 * time.Millisecond},
		}
		e := NewExtractor(Config{}, nil)

		res, err := e.ExtractPages(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, "page one\n\npage two\n\npage three", res.Text)
		assert.Equal(t, 3, res.PageCount)
		assert.Empty(t, res.FailedPages)
	})

	t.Run("failed page contributes empty text", func(t *testing.T) {
		src := &fakeSource{
			pages: [][]Fragment{onePage("first", 700), onePage("second", 700), onePage("third", 700)},
			fail:  map[int]bool{2: true},
		}
		logger := logging.NewTestLogger()
		e := NewExtractor(Config{}, logger.Underlying())

		res, err := e.ExtractPages(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, "first\n\n\n\nthird", res.Text)
		assert.Equal(t, []int{2}, res.FailedPages)
		logger.AssertLogged(t, zapcore.WarnLevel, "page extraction failed")
	})

	t.Run("panicking page contributes empty text", func(t *testing.T) {
		src := &fakeSource{
			pages:  [][]Fragment{onePage("first", 700), onePage("second", 700)},
			panics: map[int]bool{1: true},
		}
		logger := logging.NewTestLogger()
		e := NewExtractor(Config{}, logger.Underlying())

		res, err := e.ExtractPages(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, "\n\nsecond", res.Text)
		assert.Equal(t, []int{1}, res.FailedPages)
		logger.AssertLogged(t, zapcore.WarnLevel, "page extraction failed")
	})

	t.Run("concurrency is bounded", func(t *testing.T) {
		pages := make([][]Fragment, 12)
		delay := make(map[int]time.Duration)
		for i := range pages {
			pages[i] = onePage("p", 100)
			delay[i+1] = 5 * time.Millisecond
		}
		src := &fakeSource{pages: pages, delay: delay}
		e := NewExtractor(Config{PageConcurrency: 3}, nil)

		_, err := e.ExtractPages(context.Background(), src)
		require.NoError(t, err)
		assert.LessOrEqual(t, src.peak.Load(), int32(3))
	})

	t.Run("cancelled context aborts extraction", func(t *testing.T) {
		src := &fakeSource{
			pages: [][]Fragment{onePage("a", 1), onePage("b", 1)},
			delay: map[int]time.Duration{1: time.Second, 2: time.Second},
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewExtractor(Config{}, nil).ExtractPages(ctx, src)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("non-paginated input is decoded verbatim", func(t *testing.T) {
		e := NewExtractor(Config{}, nil)
		raw := "\ufeffline one\n  indented\n"

		res, err := e.Extract(context.Background(), []byte(raw), document.ClassCode)
		require.NoError(t, err)
		assert.Equal(t, "line one\n  indented\n", res.Text)
		assert.Zero(t, res.PageCount)
	})

	t.Run("invalid utf-8 becomes replacement characters", func(t *testing.T) {
		res, err := NewExtractor(Config{}, nil).Extract(context.Background(), []byte{'o', 'k', 0xff}, document.ClassProse)
		require.NoError(t, err)
		assert.Equal(t, "ok\uFFFD", res.Text)
	})

	t.Run("paginated input uses the opener", func(t *testing.T) {
		src := &fakeSource{pages: [][]Fragment{onePage("only page", 500)}}
		e := NewExtractor(Config{Open: func([]byte) (PageSource, error) { return src, nil }}, nil)

		res, err := e.Extract(context.Background(), []byte("%PDF"), document.ClassPaginated)
		require.NoError(t, err)
		assert.Equal(t, "only page", res.Text)
	})

	t.Run("unreadable pdf is an error", func(t *testing.T) {
		_, err := NewExtractor(Config{}, nil).Extract(context.Background(), []byte("not a pdf"), document.ClassPaginated)
		assert.Error(t, err)
	})
}
