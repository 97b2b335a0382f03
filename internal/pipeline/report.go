package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

// FormatReport generates a human-readable run report listing every
// (document, statement type) outcome.
func FormatReport(report *model.RunReport, consolidated []*model.ConsolidatedStatement) string {
	var b strings.Builder

	name := report.Company
	if name == "" {
		name = "unknown company"
	}
	fmt.Fprintf(&b, "# Run Report: %s\n", name)
	fmt.Fprintf(&b, "Run: %s\n", report.ID)
	fmt.Fprintf(&b, "Status: %s\n", report.Status)
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}
	b.WriteString("\n")

	// Summary.
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Documents: %d\n", report.Documents)
	fmt.Fprintf(&b, "- Consolidated: %d\n", report.Count(model.OutcomeConsolidated))
	fmt.Fprintf(&b, "- Parsed, not consolidated: %d\n", report.Count(model.OutcomeParsedNotConsolidated))
	fmt.Fprintf(&b, "- Not detected: %d\n", report.Count(model.OutcomeNotDetected))
	fmt.Fprintf(&b, "- Parse failed: %d\n\n", report.Count(model.OutcomeParseFailed))

	// Outcomes, in document order.
	b.WriteString("## Outcomes\n")
	if len(report.Outcomes) == 0 {
		b.WriteString("No outcomes recorded.\n\n")
	} else {
		b.WriteString("| Document | Statement | Result | Pages | Line items |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, o := range report.Outcomes {
			pages := "-"
			if o.Range != nil {
				pages = fmt.Sprintf("%d-%d", o.Range.StartPage, o.Range.EndPage)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
				o.DocumentID, o.StatementType.Title(), describe(o), pages, o.LineItems)
		}
		b.WriteString("\n")
	}

	// Consolidation warnings and discrepancies.
	for _, cs := range consolidated {
		if len(cs.Warnings) == 0 && len(cs.Discrepancies) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", cs.StatementType.Title())
		for _, w := range cs.Warnings {
			fmt.Fprintf(&b, "- Warning: %s\n", w)
		}
		for _, d := range cs.Discrepancies {
			fmt.Fprintf(&b, "- %s %s: kept %s from %s, dropped %s from %s\n",
				d.CanonicalName, d.Period, d.KeptValue, d.KeptSource, d.DroppedValue, d.DroppedSource)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func describe(o model.Outcome) string {
	var s string
	switch o.Status {
	case model.OutcomeConsolidated:
		s = "detected, parsed, consolidated"
	case model.OutcomeParsedNotConsolidated:
		s = "detected, parsed, not consolidated"
	case model.OutcomeNotDetected:
		s = "not detected"
	case model.OutcomeParseFailed:
		s = "parse failed"
	default:
		s = string(o.Status)
	}
	if o.Reason != "" {
		s += " (" + escapeCell(o.Reason) + ")"
	}
	return s
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
