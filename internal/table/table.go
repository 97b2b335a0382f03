// Package table turns extracted page text into rows of cells.
//
// Two input shapes are supported: layout text from pdftotext, where columns
// are separated by runs of spaces, and markdown pipe tables from OCR.
package table

import (
	"regexp"
	"strings"

	"github.com/ptigroup/deepfin-sub000/internal/amount"
)

// Row is one non-empty line of a page split into cells. The first cell keeps
// its leading whitespace; all other cells are trimmed. Layout rows also carry
// the byte span of every cell within Line; pipe rows leave Spans nil.
type Row struct {
	Line  string
	Cells []string
	Spans []Span
}

// Span is the [Start, End) byte range of a cell's text within its line.
type Span struct {
	Start int
	End   int
}

// Overlap returns the number of bytes s and o share.
func (s Span) Overlap(o Span) int {
	return max(0, min(s.End, o.End)-max(s.Start, o.Start))
}

// Page is one page of extracted text.
type Page struct {
	Number int
	Text   string
	Rows   []Row
}

var (
	separatorRe = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	layoutGapRe = regexp.MustCompile(`\s{2,}|\t+`)
)

// SplitPages splits extractor output on form feeds. A trailing empty page
// left by a final form feed is dropped.
func SplitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// ParsePages parses page texts, numbering them from 1.
func ParsePages(texts []string) []Page {
	out := make([]Page, len(texts))
	for i, t := range texts {
		out[i] = ParsePage(i+1, t)
	}
	return out
}

// ParsePage splits text into rows.
func ParsePage(number int, text string) Page {
	p := Page{Number: number, Text: text}
	for _, line := range strings.Split(text, "\n") {
		line = stripMarkdown(strings.TrimRight(line, " \t\r"))
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells, spans := splitRow(line)
		if cells == nil {
			continue
		}
		p.Rows = append(p.Rows, Row{Line: line, Cells: cells, Spans: spans})
	}
	return p
}

// stripMarkdown drops heading markers and emphasis that OCR output wraps
// around captions.
func stripMarkdown(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	}
	if strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**") && !strings.Contains(trimmed, "|") {
		return strings.TrimSpace(strings.Trim(trimmed, "*"))
	}
	return line
}

// SplitLine splits a single line into cells. Markdown separator rows return nil.
func SplitLine(line string) []string {
	cells, _ := splitRow(line)
	return cells
}

func splitRow(line string) ([]string, []Span) {
	trimmed := strings.TrimSpace(line)
	if strings.Contains(trimmed, "|") {
		if separatorRe.MatchString(trimmed) {
			return nil, nil
		}
		cells, _ := mergeDollar(splitPipes(trimmed), nil)
		return cells, nil
	}
	return mergeDollar(splitLayout(line))
}

func splitPipes(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == 0 {
			// markdown has no indentation; keep what OCR left after the pipe
			cells = append(cells, strings.TrimRight(strings.TrimPrefix(p, " "), " "))
			continue
		}
		cells = append(cells, strings.TrimSpace(p))
	}
	// trailing empty cells carry no information
	for len(cells) > 1 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func splitLayout(line string) ([]string, []Span) {
	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	body := line[indent:]

	var segments []Span
	prev := 0
	for _, gap := range layoutGapRe.FindAllStringIndex(body, -1) {
		segments = append(segments, Span{Start: indent + prev, End: indent + gap[0]})
		prev = gap[1]
	}
	segments = append(segments, Span{Start: indent + prev, End: len(line)})

	cells := make([]string, 0, len(segments))
	spans := make([]Span, 0, len(segments))
	for i, seg := range segments {
		p := strings.TrimSpace(line[seg.Start:seg.End])
		if i == 0 {
			if isValueCell(p) {
				// column header or label-less row
				cells = append(cells, "", p)
				spans = append(spans, Span{Start: indent, End: indent}, seg)
				continue
			}
			cells = append(cells, line[:indent]+p)
			spans = append(spans, seg)
			continue
		}
		if p == "" {
			continue
		}
		cells = append(cells, p)
		spans = append(spans, seg)
	}
	return cells, spans
}

func isValueCell(s string) bool {
	if s == "$" {
		return true
	}
	return s != "" && amount.IsNumber(s)
}

// mergeDollar joins a lone "$" cell with the cell after it. spans, when
// present, are merged alongside.
func mergeDollar(cells []string, spans []Span) ([]string, []Span) {
	out := make([]string, 0, len(cells))
	var outSpans []Span
	if spans != nil {
		outSpans = make([]Span, 0, len(spans))
	}
	for i := 0; i < len(cells); i++ {
		c := cells[i]
		if i > 0 && strings.TrimSpace(c) == "$" && i+1 < len(cells) {
			out = append(out, "$"+cells[i+1])
			if spans != nil {
				outSpans = append(outSpans, Span{Start: spans[i].Start, End: spans[i+1].End})
			}
			i++
			continue
		}
		out = append(out, c)
		if spans != nil {
			outSpans = append(outSpans, spans[i])
		}
	}
	return out, outSpans
}

// Name returns the trimmed first cell.
func (r Row) Name() string {
	if len(r.Cells) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Cells[0])
}

// Indent returns the leading whitespace width of the first cell. Tabs count
// as four columns.
func (r Row) Indent() int {
	if len(r.Cells) == 0 {
		return 0
	}
	n := 0
	for _, c := range r.Cells[0] {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4
		case '\u00a0':
			n++
		default:
			return n
		}
	}
	return n
}

// ValueCells returns every cell after the first, trimmed.
func (r Row) ValueCells() []string {
	if len(r.Cells) < 2 {
		return nil
	}
	out := make([]string, len(r.Cells)-1)
	for i, c := range r.Cells[1:] {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// ValueSpans returns the spans of the cells after the first, or nil when the
// row has no offsets.
func (r Row) ValueSpans() []Span {
	if len(r.Spans) != len(r.Cells) || len(r.Spans) < 2 {
		return nil
	}
	return r.Spans[1:]
}

// Width returns the number of cells.
func (r Row) Width() int {
	return len(r.Cells)
}

// TableRows returns the rows with at least minCols cells.
func (p Page) TableRows(minCols int) []Row {
	var out []Row
	for _, r := range p.Rows {
		if len(r.Cells) >= minCols {
			out = append(out, r)
		}
	}
	return out
}

// IsTableLike reports whether at least minRows rows have minCols or more cells.
func (p Page) IsTableLike(minCols, minRows int) bool {
	return len(p.TableRows(minCols)) >= minRows
}

// DominantColumnCount returns the most common cell count among rows with at
// least two cells and the number of rows having it. Ties prefer the wider count.
func (p Page) DominantColumnCount() (cols, rows int) {
	counts := make(map[int]int)
	for _, r := range p.Rows {
		if len(r.Cells) >= 2 {
			counts[len(r.Cells)]++
		}
	}
	for c, n := range counts {
		if n > rows || (n == rows && c > cols) {
			cols, rows = c, n
		}
	}
	return cols, rows
}

// Heading returns the first n non-empty lines, trimmed and joined by newlines.
func (p Page) Heading(n int) string {
	var lines []string
	for _, r := range p.Rows {
		if len(lines) == n {
			break
		}
		lines = append(lines, strings.TrimSpace(strings.Trim(strings.TrimSpace(r.Line), "|")))
	}
	return strings.Join(lines, "\n")
}
