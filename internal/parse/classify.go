package parse

import (
	"github.com/ptigroup/deepfin-sub000/internal/amount"
	"github.com/ptigroup/deepfin-sub000/internal/table"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

// RowKind is the role a table row plays in a statement.
type RowKind int

const (
	Unrecognized RowKind = iota
	Header
	Total
	Data
)

func (k RowKind) String() string {
	switch k {
	case Header:
		return "header"
	case Total:
		return "total"
	case Data:
		return "data"
	default:
		return "unrecognized"
	}
}

// Classifier assigns a RowKind to rows. It has no state of its own.
type Classifier struct {
	terms *terms.Terms
}

// NewClassifier creates a Classifier backed by the given vocabulary.
func NewClassifier(t *terms.Terms) *Classifier {
	return &Classifier{terms: t}
}

// Classify returns the kind of r:
//   - Header: a label with every value cell empty, e.g. "Current assets:"
//   - Total: a label matching a total pattern with at least one value
//   - Data: a label with at least one number or null marker
//   - Unrecognized: everything else, including titles, captions and
//     label-less rows
func (c *Classifier) Classify(r table.Row) RowKind {
	name := r.Name()
	if name == "" || c.terms.IsPreamble(name) {
		return Unrecognized
	}

	values := r.ValueCells()
	hasValue, allEmpty := false, true
	for _, v := range values {
		if v == "" {
			continue
		}
		allEmpty = false
		if amount.IsValue(v) {
			hasValue = true
		}
	}

	total := c.terms.IsTotal(name)
	switch {
	case allEmpty && !total:
		return Header
	case allEmpty:
		return Unrecognized
	case !hasValue:
		return Unrecognized
	case total:
		return Total
	default:
		return Data
	}
}
