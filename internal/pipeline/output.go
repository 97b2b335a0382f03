package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ptigroup/deepfin-sub000/internal/export"
	"github.com/ptigroup/deepfin-sub000/internal/model"
)

// Output layout under <output.dir>/<run-id>/.
const (
	ParsedDir       = "parsed"
	ConsolidatedDir = "consolidated"
	WorkbookFile    = "consolidated.xlsx"
	ReportJSONFile  = "report.json"
	ReportMDFile    = "report.md"
)

// ParsedFileName returns the per-document statement file name.
func ParsedFileName(documentID string, st model.StatementType) string {
	return documentID + "_" + string(st) + ".json"
}

func (p *Pipeline) writeOutputs(dir string, res *Result) error {
	for _, ps := range res.Parsed {
		path := filepath.Join(dir, ParsedDir, ParsedFileName(ps.SourceDocumentID, ps.StatementType))
		if err := export.WriteJSONFile(path, ps); err != nil {
			return eris.Wrap(err, "pipeline: write parsed statement")
		}
	}

	for _, cs := range res.Consolidated {
		path := filepath.Join(dir, ConsolidatedDir, string(cs.StatementType)+".json")
		if err := export.WriteJSONFile(path, cs); err != nil {
			return eris.Wrap(err, "pipeline: write consolidated statement")
		}
	}

	if p.cfg.Output.Excel && len(res.Consolidated) > 0 {
		if err := export.WriteWorkbook(filepath.Join(dir, WorkbookFile), res.Consolidated); err != nil {
			return eris.Wrap(err, "pipeline: write workbook")
		}
	}

	if err := export.WriteJSONFile(filepath.Join(dir, ReportJSONFile), res.Report); err != nil {
		return eris.Wrap(err, "pipeline: write report")
	}
	md := FormatReport(res.Report, res.Consolidated)
	if err := os.WriteFile(filepath.Join(dir, ReportMDFile), []byte(md), 0o644); err != nil {
		return eris.Wrap(err, "pipeline: write markdown report")
	}
	return nil
}
