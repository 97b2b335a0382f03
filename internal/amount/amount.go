// Package amount parses and formats the monetary tokens found in financial
// statement tables.
package amount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatError reports a token that is neither a number nor a null marker.
type FormatError struct {
	Token string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("amount: cannot parse %q as a number", e.Token)
}

var stripper = strings.NewReplacer(
	"$", "",
	",", "",
	" ", "",
	"\t", "",
	"\u00a0", "",
	"\u2212", "-",
)

// Parse converts a table cell into an exact decimal. Parentheses denote a
// negative. Empty cells and lone dashes are reported as null.
func Parse(token string) (decimal.NullDecimal, error) {
	s := stripper.Replace(strings.TrimSpace(token))

	switch s {
	case "", "-", "--", "\u2014", "\u2013":
		return decimal.NullDecimal{}, nil
	}

	negative := false
	open := strings.HasPrefix(s, "(")
	closed := strings.HasSuffix(s, ")")
	if open || closed {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		if negative {
			return decimal.NullDecimal{}, &FormatError{Token: token}
		}
		negative = true
		s = s[1:]
	}
	if s == "" || !isNumeric(s) {
		return decimal.NullDecimal{}, &FormatError{Token: token}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, &FormatError{Token: token}
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d), nil
}

func isNumeric(s string) bool {
	dot := false
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// Format renders d the way statements print it: thousands separators and
// parentheses for negatives. A null value renders as "-".
func Format(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	s := d.Decimal.Abs().String()
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	if d.Decimal.IsNegative() {
		return "(" + b.String() + ")"
	}
	return b.String()
}

// IsNumber reports whether token parses to a non-null amount.
func IsNumber(token string) bool {
	d, err := Parse(token)
	return err == nil && d.Valid
}

// IsValue reports whether token is a number or a null marker.
func IsValue(token string) bool {
	_, err := Parse(token)
	return err == nil
}
