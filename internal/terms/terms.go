// Package terms loads the statement vocabulary: keywords, title patterns,
// reject rules and account synonyms. A default set is embedded; an external
// YAML file with the same shape replaces it without a rebuild.
package terms

import (
	_ "embed"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

//go:embed terms.yaml
var defaultYAML []byte

// File is the YAML shape of a terms file.
type File struct {
	Version     int                      `yaml:"version"`
	Statements  map[string]StatementFile `yaml:"statements"`
	Reject      []string                 `yaml:"reject"`
	Preamble    []string                 `yaml:"preamble"`
	Scales      map[string]string        `yaml:"scales"`
	Totals      []string                 `yaml:"totals"`
	Synonyms    map[string][]string      `yaml:"synonyms"`
	CrossParent []string                 `yaml:"cross_parent"`
}

// StatementFile holds the terms for one statement type.
type StatementFile struct {
	Keywords    []string `yaml:"keywords"`
	Titles      []string `yaml:"titles"`
	StrictTitle string   `yaml:"strict_title"`
}

// Statement is the compiled vocabulary for one statement type.
type Statement struct {
	Type        model.StatementType
	Keywords    []string
	Titles      []*regexp.Regexp
	StrictTitle *regexp.Regexp
}

type scale struct {
	name string
	re   *regexp.Regexp
}

// Terms is a compiled terms file. It is read-only after construction and
// safe for concurrent use.
type Terms struct {
	Version     int
	statements  map[model.StatementType]*Statement
	reject      []*regexp.Regexp
	preamble    []*regexp.Regexp
	scales      []scale
	totals      []*regexp.Regexp
	synonyms    map[string]string
	crossParent map[string]bool
}

// Default returns the embedded terms.
func Default() *Terms {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a terms file from path. An empty path returns Default().
func Load(path string) (*Terms, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "terms: read %s", path)
	}
	return Parse(data)
}

// Parse compiles a terms file.
func Parse(data []byte) (*Terms, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "terms: parse yaml")
	}
	return Compile(f)
}

// Compile validates and compiles a File.
func Compile(f File) (*Terms, error) {
	t := &Terms{
		Version:     f.Version,
		statements:  make(map[model.StatementType]*Statement),
		synonyms:    make(map[string]string),
		crossParent: make(map[string]bool),
	}

	for name, sf := range f.Statements {
		st, err := model.ParseStatementType(name)
		if err != nil {
			return nil, eris.Wrap(err, "terms: statements")
		}
		s := &Statement{Type: st}
		for _, k := range sf.Keywords {
			s.Keywords = append(s.Keywords, strings.ToLower(k))
		}
		if s.Titles, err = compileAll(sf.Titles); err != nil {
			return nil, eris.Wrapf(err, "terms: %s titles", name)
		}
		if sf.StrictTitle != "" {
			if s.StrictTitle, err = compile(sf.StrictTitle); err != nil {
				return nil, eris.Wrapf(err, "terms: %s strict_title", name)
			}
		}
		t.statements[st] = s
	}

	var err error
	if t.reject, err = compileAll(f.Reject); err != nil {
		return nil, eris.Wrap(err, "terms: reject")
	}
	if t.preamble, err = compileAll(f.Preamble); err != nil {
		return nil, eris.Wrap(err, "terms: preamble")
	}
	if t.totals, err = compileAll(f.Totals); err != nil {
		return nil, eris.Wrap(err, "terms: totals")
	}

	names := make([]string, 0, len(f.Scales))
	for name := range f.Scales {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		re, err := compile(f.Scales[name])
		if err != nil {
			return nil, eris.Wrapf(err, "terms: scale %s", name)
		}
		t.scales = append(t.scales, scale{name: name, re: re})
	}

	for canonical, variants := range f.Synonyms {
		c := Normalize(canonical)
		if prev, ok := t.synonyms[c]; ok && prev != c {
			return nil, eris.Errorf("terms: %q is a synonym of both %q and %q", canonical, prev, c)
		}
		t.synonyms[c] = c
		for _, v := range variants {
			n := Normalize(v)
			if prev, ok := t.synonyms[n]; ok && prev != c {
				return nil, eris.Errorf("terms: %q is a synonym of both %q and %q", v, prev, c)
			}
			t.synonyms[n] = c
		}
	}
	for _, name := range f.CrossParent {
		t.crossParent[t.Canonical(Normalize(name))] = true
	}

	return t, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "compile %q", p)
		}
		out = append(out, re)
	}
	return out, nil
}

// Statement returns the vocabulary for st, or nil when none is configured.
func (t *Terms) Statement(st model.StatementType) *Statement {
	return t.statements[st]
}

// Types returns the configured statement types in canonical order.
func (t *Terms) Types() []model.StatementType {
	var out []model.StatementType
	for _, st := range model.AllStatementTypes() {
		if _, ok := t.statements[st]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Rejected reports whether text matches a reject pattern, returning the
// pattern that matched.
func (t *Terms) Rejected(text string) (string, bool) {
	return firstMatch(t.reject, text)
}

// IsPreamble reports whether a row label is a title, scale or date caption
// rather than an account.
func (t *Terms) IsPreamble(label string) bool {
	_, ok := firstMatch(t.preamble, strings.TrimSpace(label))
	return ok
}

// IsTotal reports whether an account label names a total or subtotal.
func (t *Terms) IsTotal(label string) bool {
	_, ok := firstMatch(t.totals, strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), ":")))
	return ok
}

// Scale returns the unit caption found in text ("thousands", "millions",
// "billions") or "".
func (t *Terms) Scale(text string) string {
	for _, s := range t.scales {
		if s.re.MatchString(text) {
			return s.name
		}
	}
	return ""
}

// Canonical maps a normalized account name to its synonym group head. Names
// outside any group are returned unchanged.
func (t *Terms) Canonical(normalized string) string {
	if c, ok := t.synonyms[normalized]; ok {
		return c
	}
	return normalized
}

// HasSynonym reports whether the normalized name belongs to a synonym group.
func (t *Terms) HasSynonym(normalized string) bool {
	_, ok := t.synonyms[normalized]
	return ok
}

// CrossParent reports whether a canonical account merges across parent
// sections.
func (t *Terms) CrossParent(canonical string) bool {
	return t.crossParent[canonical]
}

// KeywordHits counts the distinct keywords of s present in lowered text.
func (s *Statement) KeywordHits(lowered string) int {
	n := 0
	for _, k := range s.Keywords {
		if strings.Contains(lowered, k) {
			n++
		}
	}
	return n
}

// MatchesTitle reports whether text carries one of the statement's titles.
func (s *Statement) MatchesTitle(text string) bool {
	_, ok := firstMatch(s.Titles, text)
	return ok
}

// MatchesStrictTitle reports whether any line of text is the formal
// "Consolidated Statements of ..." caption.
func (s *Statement) MatchesStrictTitle(text string) bool {
	if s.StrictTitle == nil {
		return false
	}
	for _, line := range strings.Split(text, "\n") {
		if s.StrictTitle.MatchString(line) {
			return true
		}
	}
	return false
}

func firstMatch(res []*regexp.Regexp, text string) (string, bool) {
	for _, re := range res {
		if re.MatchString(text) {
			return re.String(), true
		}
	}
	return "", false
}
