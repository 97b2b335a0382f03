package consolidate

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// periodKey identifies a reporting period across filings. Labels carrying a
// year are keyed by the last year they mention; other labels by themselves.
func periodKey(label string) string {
	matches := yearRe.FindAllString(label, -1)
	if len(matches) == 0 {
		return label
	}
	return matches[len(matches)-1]
}

// axis is the unified period axis of a consolidation.
type axis struct {
	keys  []string
	label map[string]string
	// bySource maps each source's period labels to axis keys, by source rank
	bySource []map[string]string
}

// sourceKeys keys the periods of one statement. Labels are keyed by their
// year so filings that word the same period differently line up; when two
// labels of one statement share a year, such as a quarter and the full year
// ending on the same date, both keep their full label.
func sourceKeys(periods []string) map[string]string {
	count := make(map[string]int, len(periods))
	for _, p := range periods {
		count[periodKey(p)]++
	}
	out := make(map[string]string, len(periods))
	for _, p := range periods {
		k := periodKey(p)
		if count[k] > 1 {
			k = p
		}
		out[p] = k
	}
	return out
}

// key returns the axis key of label in the source at rank.
func (a axis) key(rank int, label string) string {
	if k, ok := a.bySource[rank][label]; ok {
		return k
	}
	return periodKey(label)
}

// buildAxis unions the periods of sources, which must be ordered oldest
// first. The newest source's label wins for a shared period. Year periods
// are ordered chronologically; others follow in first-seen order.
func buildAxis(sources []*model.ParsedStatement) axis {
	a := axis{label: make(map[string]string)}
	var years, other []string
	for _, s := range sources {
		keys := sourceKeys(s.Periods)
		a.bySource = append(a.bySource, keys)
		for _, p := range s.Periods {
			k := keys[p]
			if _, seen := a.label[k]; !seen {
				if yearRe.MatchString(k) {
					years = append(years, k)
				} else {
					other = append(other, k)
				}
			}
			a.label[k] = p
		}
	}
	sort.SliceStable(years, func(i, j int) bool {
		yi, _ := strconv.Atoi(periodKey(years[i]))
		yj, _ := strconv.Atoi(periodKey(years[j]))
		return yi < yj
	})
	a.keys = append(years, other...)
	return a
}

// labels returns the period labels in axis order.
func (a axis) labels() []string {
	out := make([]string, len(a.keys))
	for i, k := range a.keys {
		out[i] = a.label[k]
	}
	return out
}
