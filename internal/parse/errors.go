package parse

import "fmt"

// EmptyStatementError means the rows held no period header or no line items.
type EmptyStatementError struct {
	Reason string
}

func (e *EmptyStatementError) Error() string {
	return "parse: empty statement: " + e.Reason
}

// StructureMismatchError means a line item carries a value for a period the
// column headers do not declare, usually a column alignment failure.
type StructureMismatchError struct {
	Account string
	Period  string
	Periods []string
}

func (e *StructureMismatchError) Error() string {
	return fmt.Sprintf("parse: structure mismatch: %q has value for %q outside periods %q", e.Account, e.Period, e.Periods)
}
