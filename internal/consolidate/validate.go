package consolidate

import (
	"fmt"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

// validate reports problems in a merged statement as warnings:
// duplicate merge keys, periods without any value, and totals missing a
// value their section reports.
func (e *Engine) validate(cs *model.ConsolidatedStatement) []string {
	var warnings []string

	seen := make(map[string]bool)
	for _, li := range cs.LineItems {
		key := li.Canonical()
		if !e.terms.CrossParent(key) {
			key += "\x00" + li.Parent()
		}
		if seen[key] {
			warnings = append(warnings, fmt.Sprintf("duplicate line item %q under %q", li.Canonical(), li.Parent()))
		}
		seen[key] = true
	}

	for _, period := range cs.Periods {
		populated := false
		for _, li := range cs.LineItems {
			if v, _ := li.Values.Get(period); v.Valid {
				populated = true
				break
			}
		}
		if !populated {
			warnings = append(warnings, fmt.Sprintf("period %q has no values", period))
		}
	}

	for _, total := range cs.LineItems {
		if !total.IsTotal || total.ParentSection == nil {
			continue
		}
		for _, period := range cs.Periods {
			if v, _ := total.Values.Get(period); v.Valid {
				continue
			}
			for _, child := range cs.LineItems {
				if child.IsTotal || child.Parent() != total.Parent() {
					continue
				}
				if v, _ := child.Values.Get(period); v.Valid {
					warnings = append(warnings, fmt.Sprintf("total %q has no value for %q but its section does", total.AccountName, period))
					break
				}
			}
		}
	}

	return warnings
}
