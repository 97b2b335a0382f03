// Package export renders statements to JSON and Excel.
package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

// WriteJSON writes a consolidated statement as indented JSON.
func WriteJSON(w io.Writer, cs *model.ConsolidatedStatement) error {
	return encode(w, cs)
}

// WriteParsedJSON writes a single-document statement as indented JSON.
func WriteParsedJSON(w io.Writer, ps *model.ParsedStatement) error {
	return encode(w, ps)
}

// WriteJSONTo writes any value as indented JSON.
func WriteJSONTo(w io.Writer, v any) error {
	return encode(w, v)
}

// ReadParsedJSON reads a statement written by WriteParsedJSON.
func ReadParsedJSON(r io.Reader) (*model.ParsedStatement, error) {
	var ps model.ParsedStatement
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return nil, eris.Wrap(err, "export: decode parsed statement")
	}
	if !ps.StatementType.Valid() {
		return nil, eris.Errorf("export: unknown statement type %q", ps.StatementType)
	}
	return &ps, nil
}

// ReadParsedFile reads a parsed statement from path.
func ReadParsedFile(path string) (*model.ParsedStatement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	ps, err := ReadParsedJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	return ps, nil
}

// WriteJSONFile writes v as indented JSON to path, creating parent
// directories as needed.
func WriteJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := encode(f, v); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "export: write %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}
