package parser

import (
	"math"
	"sort"
	"strings"
)

// Fragment is a positioned piece of text on a page.
type Fragment struct {
	Text  string
	X     float64
	Y     float64
	Width float64
}

// Layout defaults.
const (
	DefaultLineTolerance = 5.0
	DefaultWordGap       = 5.0
	DefaultColumnGap     = 20.0
	DefaultColumnMarker  = " \t "
)

// LayoutOptions tunes page reconstruction.
type LayoutOptions struct {
	// LineTolerance is the maximum y distance (exclusive) between fragments
	// of one line.
	LineTolerance float64
	// WordGap is the gap above which a single space is inserted.
	WordGap float64
	// ColumnGap is the gap above which ColumnMarker is inserted.
	ColumnGap float64
	// ColumnMarker approximates column structure.
	ColumnMarker string
}

// DefaultLayoutOptions returns the default layout options.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		LineTolerance: DefaultLineTolerance,
		WordGap:       DefaultWordGap,
		ColumnGap:     DefaultColumnGap,
		ColumnMarker:  DefaultColumnMarker,
	}
}

func (o *LayoutOptions) applyDefaults() {
	if o.LineTolerance <= 0 {
		o.LineTolerance = DefaultLineTolerance
	}
	if o.WordGap <= 0 {
		o.WordGap = DefaultWordGap
	}
	if o.ColumnGap <= 0 {
		o.ColumnGap = DefaultColumnGap
	}
	if o.ColumnMarker == "" {
		o.ColumnMarker = DefaultColumnMarker
	}
}

type line struct {
	y         float64
	fragments []Fragment
}

// ReconstructPage rebuilds the reading-order text of one page.
func ReconstructPage(fragments []Fragment, opts LayoutOptions) string {
	if len(fragments) == 0 {
		return ""
	}
	opts.applyDefaults()

	lines := clusterLines(fragments, opts.LineTolerance)

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	out := make([]string, len(lines))
	for i := range lines {
		out[i] = renderLine(lines[i].fragments, opts)
	}
	return strings.Join(out, "\n")
}

// clusterLines attaches each fragment to the first line whose anchor y is
// strictly within tolerance. A line keeps the y of its first fragment.
func clusterLines(fragments []Fragment, tolerance float64) []line {
	var lines []line
	for _, f := range fragments {
		placed := false
		for i := range lines {
			if math.Abs(lines[i].y-f.Y) < tolerance {
				lines[i].fragments = append(lines[i].fragments, f)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, line{y: f.Y, fragments: []Fragment{f}})
		}
	}
	return lines
}

func renderLine(fragments []Fragment, opts LayoutOptions) string {
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].X < fragments[j].X
	})

	var b strings.Builder
	for i, f := range fragments {
		if i > 0 {
			prev := fragments[i-1]
			gap := f.X - (prev.X + prev.Width)
			switch {
			case gap > opts.ColumnGap:
				b.WriteString(opts.ColumnMarker)
			case gap > opts.WordGap:
				b.WriteByte(' ')
			}
		}
		b.WriteString(f.Text)
	}
	return b.String()
}
