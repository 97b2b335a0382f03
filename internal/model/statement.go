package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// StatementType identifies one of the primary financial statements.
type StatementType string

const (
	StatementIncome              StatementType = "income_statement"
	StatementBalanceSheet        StatementType = "balance_sheet"
	StatementCashFlow            StatementType = "cash_flow"
	StatementComprehensiveIncome StatementType = "comprehensive_income"
	StatementShareholdersEquity  StatementType = "shareholders_equity"
)

// AllStatementTypes returns every statement type in canonical order.
func AllStatementTypes() []StatementType {
	return []StatementType{
		StatementIncome,
		StatementBalanceSheet,
		StatementCashFlow,
		StatementComprehensiveIncome,
		StatementShareholdersEquity,
	}
}

// Valid reports whether t is one of the known statement types.
func (t StatementType) Valid() bool {
	for _, s := range AllStatementTypes() {
		if s == t {
			return true
		}
	}
	return false
}

// Title returns a human-readable label, used for sheet names and reports.
func (t StatementType) Title() string {
	switch t {
	case StatementIncome:
		return "Income Statement"
	case StatementBalanceSheet:
		return "Balance Sheet"
	case StatementCashFlow:
		return "Cash Flow"
	case StatementComprehensiveIncome:
		return "Comprehensive Income"
	case StatementShareholdersEquity:
		return "Shareholders Equity"
	default:
		return string(t)
	}
}

// ParseStatementType converts a string to a StatementType.
func ParseStatementType(s string) (StatementType, error) {
	t := StatementType(s)
	if !t.Valid() {
		return "", eris.Errorf("model: unknown statement type %q", s)
	}
	return t, nil
}

// PageCandidate is one page of a source document under evaluation by the
// detector. It only lives for the duration of a detection pass.
type PageCandidate struct {
	PageNumber int        `json:"page_number"`
	RawText    string     `json:"raw_text"`
	TableRows  [][]string `json:"table_rows"`
	Score      float64    `json:"score"`
}

// DetectedRange is the contiguous page range holding one statement.
type DetectedRange struct {
	StatementType StatementType `json:"statement_type"`
	StartPage     int           `json:"start_page"`
	EndPage       int           `json:"end_page"`
	Confidence    float64       `json:"confidence"`
}

// Pages returns the number of pages in the range.
func (r DetectedRange) Pages() int {
	return r.EndPage - r.StartPage + 1
}

// LineItem is a single row of extracted financial data.
type LineItem struct {
	AccountName   string  `json:"account_name"`
	CanonicalName *string `json:"canonical_name"`
	Values        Values  `json:"values"`
	IndentLevel   int     `json:"indent_level"`
	ParentSection *string `json:"parent_section"`
	IsTotal       bool    `json:"is_total"`
	OrderIndex    int     `json:"order_index"`
}

// Clone returns a deep copy so merged items never share state with sources.
func (li LineItem) Clone() LineItem {
	out := li
	out.Values = li.Values.Clone()
	if li.CanonicalName != nil {
		out.CanonicalName = StringPtr(*li.CanonicalName)
	}
	if li.ParentSection != nil {
		out.ParentSection = StringPtr(*li.ParentSection)
	}
	return out
}

// Parent returns the parent section or "" when the item is top-level.
func (li LineItem) Parent() string {
	if li.ParentSection == nil {
		return ""
	}
	return *li.ParentSection
}

// Canonical returns the canonical name or "" when unassigned.
func (li LineItem) Canonical() string {
	if li.CanonicalName == nil {
		return ""
	}
	return *li.CanonicalName
}

// ParsedStatement is one statement extracted from one source document.
type ParsedStatement struct {
	StatementType    StatementType `json:"statement_type"`
	CompanyName      string        `json:"company_name"`
	FiscalYears      []int         `json:"fiscal_years"`
	Periods          []string      `json:"periods"`
	LineItems        []LineItem    `json:"line_items"`
	SourceDocumentID string        `json:"source_document_id"`
	FilingDate       time.Time     `json:"filing_date,omitzero"`
	Scale            string        `json:"scale,omitempty"`
}

// HasPeriod reports whether label is one of the declared periods.
func (s *ParsedStatement) HasPeriod(label string) bool {
	for _, p := range s.Periods {
		if p == label {
			return true
		}
	}
	return false
}

// Discrepancy records two sources disagreeing on the same account and period.
// The newer source's value is kept.
type Discrepancy struct {
	CanonicalName string `json:"canonical_name"`
	ParentSection string `json:"parent_section,omitempty"`
	Period        string `json:"period"`
	KeptValue     string `json:"kept_value"`
	DroppedValue  string `json:"dropped_value"`
	KeptSource    string `json:"kept_source"`
	DroppedSource string `json:"dropped_source"`
}

// ConsolidatedStatement merges one or more parsed statements of the same type.
type ConsolidatedStatement struct {
	StatementType StatementType `json:"statement_type"`
	CompanyName   string        `json:"company_name"`
	Periods       []string      `json:"periods"`
	LineItems     []LineItem    `json:"line_items"`
	Sources       []string      `json:"sources"`
	Warnings      []string      `json:"warnings,omitempty"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
