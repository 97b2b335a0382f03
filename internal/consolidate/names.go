package consolidate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

var digitsRe = regexp.MustCompile(`\d+`)

// namer assigns canonical names for one consolidation run. Names it has
// already produced are the targets for fuzzy matching, in creation order.
type namer struct {
	terms     *terms.Terms
	threshold float64
	cache     map[string]string
	canonical []string
	sorted    map[string]string
}

func newNamer(t *terms.Terms, threshold float64) *namer {
	return &namer{
		terms:     t,
		threshold: threshold,
		cache:     make(map[string]string),
		sorted:    make(map[string]string),
	}
}

// resolve returns the canonical name for a raw account label:
//  1. normalize
//  2. synonym table
//  3. closest established canonical name at or above the threshold
//  4. the normalized name itself
func (n *namer) resolve(raw string) string {
	norm := terms.Normalize(raw)
	if c, ok := n.cache[norm]; ok {
		return c
	}

	var c string
	switch {
	case n.terms.HasSynonym(norm):
		c = n.terms.Canonical(norm)
	default:
		c = n.fuzzy(norm)
		if c == "" {
			c = norm
		}
	}
	n.cache[norm] = c
	n.establish(c)
	return c
}

func (n *namer) establish(c string) {
	if _, ok := n.sorted[c]; ok {
		return
	}
	n.sorted[c] = tokenSort(c)
	n.canonical = append(n.canonical, c)
}

func (n *namer) fuzzy(norm string) string {
	key := tokenSort(norm)
	digits := strings.Join(digitsRe.FindAllString(norm, -1), " ")

	best, bestScore := "", 0.0
	for _, c := range n.canonical {
		// "2021 notes" and "2022 notes" are different instruments
		if strings.Join(digitsRe.FindAllString(c, -1), " ") != digits {
			continue
		}
		score := similarity(key, n.sorted[c])
		if score >= n.threshold && score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// similarity is the normalized Levenshtein similarity of two strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}

// tokenSort orders the words of s so word order does not affect distance.
func tokenSort(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}
