// Package parse converts the table rows of a detected statement into typed
// line items without any model in the loop.
package parse

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/table"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

// Input describes the statement being parsed.
type Input struct {
	StatementType    model.StatementType
	CompanyName      string
	SourceDocumentID string
	FilingDate       time.Time
}

// Parser turns statement pages into a ParsedStatement. It is safe for
// concurrent use.
type Parser struct {
	cfg        config.ParseConfig
	terms      *terms.Terms
	classifier *Classifier
}

// New creates a Parser.
func New(cfg config.ParseConfig, t *terms.Terms) *Parser {
	if cfg.IndentWidth <= 0 {
		cfg.IndentWidth = config.DefaultIndentWidth
	}
	if cfg.MaxIndent <= 0 {
		cfg.MaxIndent = config.DefaultMaxIndent
	}
	return &Parser{cfg: cfg, terms: t, classifier: NewClassifier(t)}
}

// Classify exposes the row classifier.
func (p *Parser) Classify(r table.Row) RowKind {
	return p.classifier.Classify(r)
}

// ParseText splits extractor output into pages and parses them.
func (p *Parser) ParseText(in Input, text string) (*model.ParsedStatement, error) {
	return p.Parse(in, table.ParsePages(table.SplitPages(text)))
}

// Parse walks the rows of pages in order. The period header is taken from
// the first page; later pages skip their repeated title and header rows.
func (p *Parser) Parse(in Input, pages []table.Page) (*model.ParsedStatement, error) {
	firstPage := -1
	for i, pg := range pages {
		if len(pg.Rows) > 0 {
			firstPage = i
			break
		}
	}
	if firstPage < 0 {
		return nil, &EmptyStatementError{Reason: "no rows"}
	}
	first := pages[firstPage].Rows
	header, ok := p.findPeriods(first)
	if !ok {
		return nil, &EmptyStatementError{Reason: "no period header row"}
	}

	preamble := first[:header.row]
	stmt := &model.ParsedStatement{
		StatementType:    in.StatementType,
		CompanyName:      in.CompanyName,
		FiscalYears:      fiscalYears(header.Periods),
		Periods:          header.Periods,
		SourceDocumentID: in.SourceDocumentID,
		FilingDate:       in.FilingDate,
		Scale:            p.scale(preamble),
	}
	if stmt.CompanyName == "" {
		stmt.CompanyName = p.companyName(preamble)
	}

	log := zap.L().With(
		zap.String("document", in.SourceDocumentID),
		zap.String("statement_type", string(in.StatementType)),
	)

	var state State
	for i, pg := range pages[firstPage:] {
		rows := pg.Rows
		cols := header.Columns
		if i == 0 {
			rows = rows[header.row+1:]
		} else if h, ok := p.findPeriods(rows); ok && len(h.Periods) == len(header.Periods) {
			rows = rows[h.row+1:]
			// a repeated header may sit at different offsets
			cols.Spans = h.Spans
		}

		for _, row := range rows {
			kind := p.classifier.Classify(row)
			if kind == Unrecognized {
				log.Debug("parse: row skipped", zap.Int("page", pg.Number), zap.String("line", strings.TrimSpace(row.Line)))
				continue
			}
			next, item, err := p.Step(state, row, kind, cols)
			if err != nil {
				return nil, err
			}
			state = next
			if item != nil {
				stmt.LineItems = append(stmt.LineItems, *item)
			}
		}
	}

	if err := validate(stmt); err != nil {
		return nil, err
	}

	log.Debug("parse: statement parsed",
		zap.Int("line_items", len(stmt.LineItems)),
		zap.Strings("periods", stmt.Periods),
	)
	return stmt, nil
}

// validate enforces that every value key is a declared period and that the
// statement has at least one line item.
func validate(stmt *model.ParsedStatement) error {
	if len(stmt.LineItems) == 0 {
		return &EmptyStatementError{Reason: "no line items"}
	}
	for _, li := range stmt.LineItems {
		for _, k := range li.Values.Keys() {
			if !stmt.HasPeriod(k) {
				return &StructureMismatchError{Account: li.AccountName, Period: k, Periods: stmt.Periods}
			}
		}
	}
	return nil
}

func (p *Parser) scale(preamble []table.Row) string {
	for _, r := range preamble {
		if s := p.terms.Scale(r.Line); s != "" {
			return s
		}
	}
	return ""
}

// companyName takes the first caption above the statement title.
func (p *Parser) companyName(preamble []table.Row) string {
	for _, r := range preamble {
		name := r.Name()
		if name == "" || len(r.ValueCells()) > 0 {
			continue
		}
		if p.terms.IsPreamble(name) {
			return ""
		}
		return name
	}
	return ""
}
