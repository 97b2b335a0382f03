package model

import "time"

// RunStatus is the overall result of a pipeline run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// OutcomeStatus is the result for one (document, statement type) pair.
type OutcomeStatus string

const (
	OutcomeConsolidated          OutcomeStatus = "consolidated"
	OutcomeParsedNotConsolidated OutcomeStatus = "parsed_not_consolidated"
	OutcomeNotDetected           OutcomeStatus = "not_detected"
	OutcomeParseFailed           OutcomeStatus = "parse_failed"
)

// Parsed reports whether the outcome produced a statement.
func (s OutcomeStatus) Parsed() bool {
	return s == OutcomeConsolidated || s == OutcomeParsedNotConsolidated
}

// Document is one source PDF handed to the pipeline.
type Document struct {
	ID         string    `json:"id" yaml:"id"`
	Path       string    `json:"path" yaml:"path"`
	Company    string    `json:"company,omitempty" yaml:"company"`
	FilingDate time.Time `json:"filing_date,omitzero" yaml:"filing_date"`
}

// Outcome records what happened to one statement type of one document.
type Outcome struct {
	DocumentID    string         `json:"document_id"`
	StatementType StatementType  `json:"statement_type"`
	Status        OutcomeStatus  `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	Range         *DetectedRange `json:"range,omitempty"`
	LineItems     int            `json:"line_items"`
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	ID         string    `json:"id"`
	Company    string    `json:"company,omitempty"`
	Status     RunStatus `json:"status"`
	Outcomes   []Outcome `json:"outcomes"`
	Documents  int       `json:"documents"`
	OutputDir  string    `json:"output_dir,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Run is a stored run record.
type Run struct {
	ID        string     `json:"id"`
	Company   string     `json:"company"`
	Status    RunStatus  `json:"status"`
	Documents int        `json:"documents"`
	Report    *RunReport `json:"report,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Summarize derives the run status from the outcomes: success when every
// outcome produced a statement, failed when none did.
func Summarize(outcomes []Outcome) RunStatus {
	if len(outcomes) == 0 {
		return RunStatusFailed
	}
	parsed := 0
	for _, o := range outcomes {
		if o.Status.Parsed() {
			parsed++
		}
	}
	switch parsed {
	case len(outcomes):
		return RunStatusSuccess
	case 0:
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// Count returns the number of outcomes with the given status.
func (r *RunReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
