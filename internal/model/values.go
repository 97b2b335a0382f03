package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Values maps period labels to amounts, preserving insertion order. A period
// with no reported amount is present with Valid=false.
type Values struct {
	keys []string
	m    map[string]decimal.NullDecimal
}

// NewValues returns an empty Values.
func NewValues() Values {
	return Values{m: make(map[string]decimal.NullDecimal)}
}

// Set stores v for period, appending the period on first use.
func (v *Values) Set(period string, d decimal.NullDecimal) {
	if v.m == nil {
		v.m = make(map[string]decimal.NullDecimal)
	}
	if _, ok := v.m[period]; !ok {
		v.keys = append(v.keys, period)
	}
	v.m[period] = d
}

// Get returns the value for period and whether the period is present.
func (v Values) Get(period string) (decimal.NullDecimal, bool) {
	d, ok := v.m[period]
	return d, ok
}

// Has reports whether period is present.
func (v Values) Has(period string) bool {
	_, ok := v.m[period]
	return ok
}

// Keys returns the periods in insertion order.
func (v Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of periods.
func (v Values) Len() int {
	return len(v.keys)
}

// NonNull returns the number of periods with a reported amount.
func (v Values) NonNull() int {
	n := 0
	for _, k := range v.keys {
		if v.m[k].Valid {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := Values{
		keys: make([]string, len(v.keys)),
		m:    make(map[string]decimal.NullDecimal, len(v.m)),
	}
	copy(out.keys, v.keys)
	for k, d := range v.m {
		out.m[k] = d
	}
	return out
}

// MarshalJSON writes an object in insertion order with bare numbers or null.
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, eris.Wrap(err, "model: marshal period")
		}
		buf.Write(key)
		buf.WriteByte(':')
		d := v.m[k]
		if d.Valid {
			buf.WriteString(d.Decimal.String())
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the key order of the input.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "model: read values")
	}
	if tok == nil {
		*v = NewValues()
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("model: values must be an object, got %v", tok)
	}

	out := NewValues()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "model: read period")
		}
		key, ok := keyTok.(string)
		if !ok {
			return eris.Errorf("model: unexpected period token %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return eris.Wrapf(err, "model: read value for %q", key)
		}
		switch val := valTok.(type) {
		case nil:
			out.Set(key, decimal.NullDecimal{})
		case json.Number:
			d, err := decimal.NewFromString(val.String())
			if err != nil {
				return eris.Wrapf(err, "model: parse value for %q", key)
			}
			out.Set(key, decimal.NewNullDecimal(d))
		case string:
			d, err := decimal.NewFromString(val)
			if err != nil {
				return eris.Wrapf(err, "model: parse value for %q", key)
			}
			out.Set(key, decimal.NewNullDecimal(d))
		default:
			return eris.Errorf("model: unexpected value %v for %q", valTok, key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "model: close values")
	}
	*v = out
	return nil
}
