// Package consolidate merges statements of one type parsed from several
// filings into a single multi-period statement.
package consolidate

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

// TypeMismatchError means the inputs mix statement types.
type TypeMismatchError struct {
	Want   model.StatementType
	Got    model.StatementType
	Source string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("consolidate: type mismatch: %s is %s, want %s", e.Source, e.Got, e.Want)
}

// EmptyInputError means there was nothing to consolidate.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "consolidate: no statements to consolidate"
}

// Engine merges parsed statements. It keeps no state between calls.
type Engine struct {
	cfg   config.ConsolidateConfig
	terms *terms.Terms
}

// New creates an Engine.
func New(cfg config.ConsolidateConfig, t *terms.Terms) *Engine {
	if cfg.FuzzyThreshold <= 0 || cfg.FuzzyThreshold > 1 {
		cfg.FuzzyThreshold = config.DefaultFuzzyThreshold
	}
	return &Engine{cfg: cfg, terms: t}
}

// Consolidate merges stmts into one statement. Inputs are not modified.
func (e *Engine) Consolidate(stmts []*model.ParsedStatement) (*model.ConsolidatedStatement, error) {
	if len(stmts) == 0 {
		return nil, &EmptyInputError{}
	}
	for _, s := range stmts {
		if s == nil {
			return nil, &EmptyInputError{}
		}
	}
	want := stmts[0].StatementType
	for _, s := range stmts {
		if s.StatementType != want {
			return nil, &TypeMismatchError{Want: want, Got: s.StatementType, Source: s.SourceDocumentID}
		}
	}

	sources := OrderSources(stmts)
	ax := buildAxis(sources)

	m := &merger{
		engine:   e,
		namer:    newNamer(e.terms, e.cfg.FuzzyThreshold),
		axis:     ax,
		groups:   make(map[string]*group),
		bySource: make([][]entry, len(sources)),
		log:      zap.L().With(zap.String("statement_type", string(want))),
	}
	// newest first, so current terminology establishes canonical names
	for i := len(sources) - 1; i >= 0; i-- {
		m.assign(i, sources[i])
	}
	m.mergeValues(sources)

	out := &model.ConsolidatedStatement{
		StatementType: want,
		Periods:       ax.labels(),
		Discrepancies: m.discrepancies,
	}
	seen := make(map[string]bool)
	for _, s := range sources {
		if !seen[s.SourceDocumentID] {
			seen[s.SourceDocumentID] = true
			out.Sources = append(out.Sources, s.SourceDocumentID)
		}
		if s.CompanyName != "" {
			out.CompanyName = s.CompanyName
		}
	}
	out.LineItems = m.lineItems()
	out.Warnings = e.validate(out)

	for _, w := range out.Warnings {
		m.log.Warn("consolidate: validation warning", zap.String("warning", w))
	}
	m.log.Info("consolidate: statements merged",
		zap.Int("sources", len(sources)),
		zap.Int("periods", len(out.Periods)),
		zap.Int("line_items", len(out.LineItems)),
		zap.Int("discrepancies", len(out.Discrepancies)),
	)
	return out, nil
}

// OrderSources returns stmts oldest first. Sources are ordered by filing
// date; a source without one is placed as if filed at the start of the year
// after its latest fiscal year. Remaining ties keep input order.
func OrderSources(stmts []*model.ParsedStatement) []*model.ParsedStatement {
	out := make([]*model.ParsedStatement, len(stmts))
	copy(out, stmts)
	sort.SliceStable(out, func(i, j int) bool {
		return effectiveDate(out[i]).Before(effectiveDate(out[j]))
	})
	return out
}

func effectiveDate(s *model.ParsedStatement) time.Time {
	if !s.FilingDate.IsZero() {
		return s.FilingDate
	}
	latest := 0
	for _, y := range s.FiscalYears {
		latest = max(latest, y)
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Date(latest+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}
