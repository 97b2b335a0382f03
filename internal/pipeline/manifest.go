package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

// Manifest lists the filings of one run.
//
//	company: Acme Corp
//	types: [income_statement, balance_sheet]
//	documents:
//	  - id: 10k-2023
//	    path: filings/acme-2023.pdf
//	    filing_date: 2024-02-20
type Manifest struct {
	Company   string           `yaml:"company"`
	Types     []string         `yaml:"types"`
	Documents []model.Document `yaml:"documents"`
}

// LoadManifest reads a manifest. Relative document paths resolve against
// the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse manifest %s", path)
	}
	if len(m.Documents) == 0 {
		return nil, eris.Errorf("pipeline: manifest %s lists no documents", path)
	}

	base := filepath.Dir(path)
	for i := range m.Documents {
		if p := m.Documents[i].Path; p != "" && !filepath.IsAbs(p) {
			m.Documents[i].Path = filepath.Join(base, p)
		}
	}
	return &m, nil
}

// Request converts the manifest into a run request.
func (m *Manifest) Request() (Request, error) {
	types, err := ParseTypes(m.Types)
	if err != nil {
		return Request{}, err
	}
	return Request{Company: m.Company, Documents: m.Documents, Types: types}, nil
}

// ParseTypes converts statement type names; an empty list means all types.
func ParseTypes(names []string) ([]model.StatementType, error) {
	out := make([]model.StatementType, 0, len(names))
	seen := make(map[model.StatementType]bool, len(names))
	for _, n := range names {
		st, err := model.ParseStatementType(n)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: statement types")
		}
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out, nil
}
