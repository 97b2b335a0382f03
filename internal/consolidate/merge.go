package consolidate

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

// entry is one source line item and the group it joined.
type entry struct {
	key  string
	item model.LineItem
}

// contribution is a line item together with the rank of its source, where
// rank 0 is the oldest filing.
type contribution struct {
	rank int
	item model.LineItem
}

// group collects the line items that consolidate into one output row.
type group struct {
	canonical string
	contribs  []contribution
	values    map[string]decimal.NullDecimal
	from      map[string]string
}

// representative is the newest contribution; equal ranks prefer more
// reported values, then the later row.
func (g *group) representative() model.LineItem {
	best := g.contribs[0]
	for _, c := range g.contribs[1:] {
		switch {
		case c.rank != best.rank:
			if c.rank > best.rank {
				best = c
			}
		case c.item.Values.NonNull() != best.item.Values.NonNull():
			if c.item.Values.NonNull() > best.item.Values.NonNull() {
				best = c
			}
		case c.item.OrderIndex > best.item.OrderIndex:
			best = c
		}
	}
	return best.item
}

type merger struct {
	engine        *Engine
	namer         *namer
	axis          axis
	groups        map[string]*group
	bySource      [][]entry
	discrepancies []model.Discrepancy
	log           *zap.Logger
}

// assign resolves the canonical name and group of every line item of the
// source at rank. A key repeated inside one source gets an occurrence
// suffix so a filing never merges two of its own rows.
func (m *merger) assign(rank int, s *model.ParsedStatement) {
	counts := make(map[string]int)
	for _, li := range s.LineItems {
		canonical := m.namer.resolve(li.AccountName)
		base := canonical + "\x00"
		if !m.engine.terms.CrossParent(canonical) && li.ParentSection != nil {
			base += m.engine.terms.Canonical(terms.Normalize(*li.ParentSection))
		}

		counts[base]++
		key, name := base, canonical
		if n := counts[base]; n > 1 {
			key = fmt.Sprintf("%s\x00%d", base, n)
			name = fmt.Sprintf("%s (%d)", canonical, n)
		}

		g, ok := m.groups[key]
		if !ok {
			g = &group{
				canonical: name,
				values:    make(map[string]decimal.NullDecimal),
				from:      make(map[string]string),
			}
			m.groups[key] = g
		}
		g.contribs = append(g.contribs, contribution{rank: rank, item: li})
		m.bySource[rank] = append(m.bySource[rank], entry{key: key, item: li})
	}
}

// mergeValues folds values oldest source first, so the newest non-null value
// for a period wins. A newer null never erases an older value. Conflicting
// values are recorded as discrepancies.
func (m *merger) mergeValues(sources []*model.ParsedStatement) {
	for rank, entries := range m.bySource {
		id := sources[rank].SourceDocumentID
		for _, e := range entries {
			g := m.groups[e.key]
			for _, label := range e.item.Values.Keys() {
				v, _ := e.item.Values.Get(label)
				k := m.axis.key(rank, label)
				old, seen := g.values[k]
				if !v.Valid {
					if !seen {
						g.values[k] = v
					}
					continue
				}
				if seen && old.Valid && !old.Decimal.Equal(v.Decimal) {
					d := model.Discrepancy{
						CanonicalName: g.canonical,
						ParentSection: e.item.Parent(),
						Period:        m.axis.label[k],
						KeptValue:     v.Decimal.String(),
						DroppedValue:  old.Decimal.String(),
						KeptSource:    id,
						DroppedSource: g.from[k],
					}
					m.discrepancies = append(m.discrepancies, d)
					m.log.Warn("consolidate: conflicting values, keeping newer filing",
						zap.String("account", d.CanonicalName),
						zap.String("period", d.Period),
						zap.String("kept", d.KeptValue),
						zap.String("kept_source", d.KeptSource),
						zap.String("dropped", d.DroppedValue),
						zap.String("dropped_source", d.DroppedSource),
					)
				}
				g.values[k] = v
				g.from[k] = id
			}
		}
	}
}

// order returns the group keys in output order: the newest source's row
// order, with rows only older sources have inserted after the nearest row
// before them that is already placed.
func (m *merger) order() []string {
	var keys []string
	placed := make(map[string]bool)
	for rank := len(m.bySource) - 1; rank >= 0; rank-- {
		pos := 0
		for _, e := range m.bySource[rank] {
			if placed[e.key] {
				pos = indexOf(keys, e.key) + 1
				continue
			}
			keys = append(keys, "")
			copy(keys[pos+1:], keys[pos:])
			keys[pos] = e.key
			placed[e.key] = true
			pos++
		}
	}
	return keys
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

// lineItems builds the merged rows with every axis period present.
func (m *merger) lineItems() []model.LineItem {
	keys := m.order()
	out := make([]model.LineItem, 0, len(keys))
	for i, key := range keys {
		g := m.groups[key]
		li := g.representative().Clone()
		li.CanonicalName = model.StringPtr(g.canonical)
		li.OrderIndex = i

		values := model.NewValues()
		for _, k := range m.axis.keys {
			values.Set(m.axis.label[k], g.values[k])
		}
		li.Values = values
		out = append(out, li)
	}
	return out
}
