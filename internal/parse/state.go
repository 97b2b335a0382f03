package parse

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/amount"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/table"
)

// State is the section context carried from one row to the next.
type State struct {
	Stack     []string
	NextIndex int
}

// Current returns the innermost open section, or nil at top level.
func (s State) Current() *string {
	if len(s.Stack) == 0 {
		return nil
	}
	return model.StringPtr(s.Stack[len(s.Stack)-1])
}

func (s State) push(section string) State {
	stack := make([]string, len(s.Stack), len(s.Stack)+1)
	copy(stack, s.Stack)
	return State{Stack: append(stack, section), NextIndex: s.NextIndex}
}

func (s State) pop() State {
	if len(s.Stack) == 0 {
		return s
	}
	return State{Stack: s.Stack[:len(s.Stack)-1:len(s.Stack)-1], NextIndex: s.NextIndex}
}

// Step advances the parse by one row. Headers open a section, totals close
// the innermost one, and data rows inherit it. The input state is never
// modified.
func (p *Parser) Step(s State, row table.Row, kind RowKind, cols Columns) (State, *model.LineItem, error) {
	switch kind {
	case Header:
		return s.push(sectionName(row.Name())), nil, nil

	case Total:
		values, err := p.values(row, cols)
		if err != nil {
			return s, nil, err
		}
		item := &model.LineItem{
			AccountName:   row.Name(),
			Values:        values,
			IndentLevel:   max(len(s.Stack)-1, 0),
			ParentSection: s.Current(),
			IsTotal:       true,
			OrderIndex:    s.NextIndex,
		}
		next := s.pop()
		next.NextIndex++
		return next, item, nil

	case Data:
		values, err := p.values(row, cols)
		if err != nil {
			return s, nil, err
		}
		indent := min(len(s.Stack)+row.Indent()/p.cfg.IndentWidth, p.cfg.MaxIndent)
		item := &model.LineItem{
			AccountName:   row.Name(),
			Values:        values,
			IndentLevel:   indent,
			ParentSection: s.Current(),
			OrderIndex:    s.NextIndex,
		}
		next := State{Stack: s.Stack, NextIndex: s.NextIndex + 1}
		return next, item, nil

	default:
		return s, nil, nil
	}
}

// values maps the row's value cells onto periods. Periods without a cell are
// null.
func (p *Parser) values(row table.Row, cols Columns) (model.Values, error) {
	out := model.NewValues()
	for _, period := range cols.Periods {
		out.Set(period, decimal.NullDecimal{})
	}
	keys, err := cols.keys(row)
	if err != nil {
		return model.Values{}, err
	}
	for i, cell := range row.ValueCells() {
		key := keys[i]
		if key == "" {
			continue
		}
		d, err := amount.Parse(cell)
		if err != nil {
			if p.cfg.StrictNumbers {
				return model.Values{}, eris.Wrapf(err, "parse: row %q", row.Name())
			}
			zap.L().Warn("parse: non-numeric value stored as null",
				zap.String("account", row.Name()),
				zap.String("period", key),
				zap.String("token", cell),
			)
			d = decimal.NullDecimal{}
		}
		out.Set(key, d)
	}
	return out, nil
}

// keys returns the period of every value cell, "" for cells to skip. A
// layout row with fewer or more cells than periods is matched to the header
// by column position, so a blank cell never shifts later values. Other rows
// are matched left to right; surplus cells get a positional key that fails
// validation.
func (c Columns) keys(row table.Row) ([]string, error) {
	cells := row.ValueCells()
	keys := make([]string, len(cells))

	spans := row.ValueSpans()
	if c.Spans == nil || spans == nil || len(cells) == len(c.Periods) {
		for i, cell := range cells {
			switch {
			case i < len(c.Periods):
				keys[i] = c.Periods[i]
			case cell != "":
				keys[i] = fmt.Sprintf("column %d", i+2)
			}
		}
		return keys, nil
	}

	last := -1
	for i, s := range spans {
		col := c.column(s)
		if col <= last {
			return nil, &StructureMismatchError{
				Account: row.Name(),
				Period:  fmt.Sprintf("column %d", i+2),
				Periods: c.Periods,
			}
		}
		keys[i] = c.Periods[col]
		last = col
	}
	return keys, nil
}

// column returns the header column that overlaps s the most, or -1.
func (c Columns) column(s table.Span) int {
	best, bestOverlap := -1, 0
	for j, h := range c.Spans {
		if o := h.Overlap(s); o > bestOverlap {
			best, bestOverlap = j, o
		}
	}
	return best
}

func sectionName(name string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ":"))
}
