package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ptigroup/deepfin-sub000/internal/amount"
	"github.com/ptigroup/deepfin-sub000/internal/table"
)

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Columns describes the value columns of a statement: one unique label per
// column and, for layout text, the span each header label occupies.
type Columns struct {
	Periods []string
	Spans   []table.Span
}

// periodHeader is the column header found above the statement body.
type periodHeader struct {
	row int
	Columns
}

func newHeader(row int, r table.Row, periods []string) periodHeader {
	h := periodHeader{row: row, Columns: Columns{Periods: uniqueLabels(periods)}}
	// header spans only line up with data cells when every label sits over
	// a value column
	if spans := r.ValueSpans(); len(spans) == len(periods) {
		h.Spans = spans
	}
	return h
}

// findPeriods locates the period header row. Year-bearing rows are preferred;
// statements with text column headers, such as equity statements, fall back
// to the last all-text row above the first data row.
func (p *Parser) findPeriods(rows []table.Row) (periodHeader, bool) {
	for i, r := range rows {
		if p.classifier.Classify(r) == Data && !isYearRow(r) {
			break
		}
		periods, ok := yearPeriods(r)
		if !ok {
			continue
		}
		if i > 0 {
			periods = p.joinLabels(rows[i-1], periods)
		}
		return newHeader(i, r, periods), true
	}

	fallback := -1
	for i, r := range rows {
		if p.classifier.Classify(r) == Data {
			break
		}
		if isTextHeader(r) {
			fallback = i
		}
	}
	if fallback < 0 {
		return periodHeader{}, false
	}
	header := rows[fallback]
	periods := header.ValueCells()
	// layout text has no label column over text headers; a deeply indented
	// first cell is a column of its own
	if header.Name() != "" && header.Indent() >= 2*p.cfg.IndentWidth {
		periods = append([]string{header.Name()}, periods...)
	}
	// repeated column labels, e.g. Shares | Amount | Shares | Amount, take
	// the caption above them when it has one cell per column
	if hasDuplicates(periods) && fallback > 0 {
		periods = p.joinLabels(rows[fallback-1], periods)
	}
	return newHeader(fallback, header, periods), true
}

// yearPeriods returns the period labels of a row whose value cells all carry
// a four-digit year. A label cell holding a date is a period too.
func yearPeriods(r table.Row) ([]string, bool) {
	if !isYearRow(r) {
		return nil, false
	}
	var periods []string
	if name := r.Name(); name != "" && yearRe.MatchString(name) {
		periods = append(periods, name)
	}
	return append(periods, r.ValueCells()...), true
}

func isYearRow(r table.Row) bool {
	values := r.ValueCells()
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v == "" || !yearRe.MatchString(v) || strings.Contains(v, "$") {
			return false
		}
	}
	return true
}

// joinLabels prefixes each period with the caption above it when the caption
// row has one text cell per period, e.g. "Year Ended January 30," over "2022".
func (p *Parser) joinLabels(above table.Row, periods []string) []string {
	if isYearRow(above) {
		return periods
	}
	labels := above.ValueCells()
	if name := above.Name(); name != "" && len(labels) > 0 && len(labels)+1 == len(periods) {
		labels = append([]string{name}, labels...)
	}
	if len(labels) != len(periods) {
		return periods
	}
	for _, l := range labels {
		if l == "" || amount.IsValue(l) {
			return periods
		}
	}
	out := make([]string, len(periods))
	for i, period := range periods {
		out[i] = labels[i] + " " + period
	}
	return out
}

func hasDuplicates(labels []string) bool {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			return true
		}
		seen[l] = true
	}
	return false
}

// uniqueLabels suffixes repeated labels with their occurrence number so every
// column keeps its own key: Amount, Amount (2).
func uniqueLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, len(labels))
	for i, l := range labels {
		label := l
		for n := 2; seen[label]; n++ {
			label = fmt.Sprintf("%s (%d)", l, n)
		}
		seen[label] = true
		out[i] = label
	}
	return out
}

// isTextHeader reports whether every value cell is non-empty text.
func isTextHeader(r table.Row) bool {
	values := r.ValueCells()
	if len(values) < 2 {
		return false
	}
	for _, v := range values {
		if v == "" || amount.IsValue(v) {
			return false
		}
	}
	return true
}

// fiscalYears extracts the distinct years of the period labels in order,
// taking the last year mentioned in each label.
func fiscalYears(periods []string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, period := range periods {
		matches := yearRe.FindAllString(period, -1)
		if len(matches) == 0 {
			continue
		}
		y, err := strconv.Atoi(matches[len(matches)-1])
		if err != nil || seen[y] {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	return out
}
