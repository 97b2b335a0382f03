package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/export"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/parse"
	"github.com/ptigroup/deepfin-sub000/internal/pipeline"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

var (
	parseType       string
	parseCompany    string
	parseDocID      string
	parseFilingDate string
	parseOut        string
)

var parseCmd = &cobra.Command{
	Use:   "parse <text-file>",
	Short: "Parse one statement from extracted page text",
	Long:  "Parses a text file holding the pages of a single statement (pages separated by form feeds) and writes the parsed statement as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTerms()
		if err != nil {
			return err
		}
		in, err := parseInput(args[0])
		if err != nil {
			return err
		}
		text, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "parse: read %s", args[0])
		}

		ps, err := parseStatement(t, in, string(text))
		if err != nil {
			return err
		}
		zap.L().Info("parse: statement parsed",
			zap.String("document_id", ps.SourceDocumentID),
			zap.String("statement_type", string(ps.StatementType)),
			zap.Int("line_items", len(ps.LineItems)),
			zap.Strings("periods", ps.Periods),
		)

		if parseOut == "" {
			return export.WriteParsedJSON(cmd.OutOrStdout(), ps)
		}
		return export.WriteJSONFile(parseOut, ps)
	},
}

// parseInput builds the parser input from flags. The document ID defaults to
// the file name without extension.
func parseInput(path string) (parse.Input, error) {
	st, err := model.ParseStatementType(parseType)
	if err != nil {
		return parse.Input{}, err
	}
	in := parse.Input{
		StatementType:    st,
		CompanyName:      parseCompany,
		SourceDocumentID: parseDocID,
	}
	if in.SourceDocumentID == "" {
		in.SourceDocumentID = pipeline.DocumentID(path)
	}
	if parseFilingDate != "" {
		d, err := time.Parse(time.DateOnly, parseFilingDate)
		if err != nil {
			return parse.Input{}, eris.Wrapf(err, "parse: invalid --filing-date %q", parseFilingDate)
		}
		in.FilingDate = d
	}
	return in, nil
}

func parseStatement(t *terms.Terms, in parse.Input, text string) (*model.ParsedStatement, error) {
	ps, err := parse.New(cfg.Parse, t).ParseText(in, text)
	if err != nil {
		return nil, eris.Wrapf(err, "parse: %s", in.SourceDocumentID)
	}
	return ps, nil
}

func init() {
	parseCmd.Flags().StringVar(&parseType, "type", "", "statement type, e.g. income_statement (required)")
	parseCmd.Flags().StringVar(&parseCompany, "company", "", "company name (default: read from the statement heading)")
	parseCmd.Flags().StringVar(&parseDocID, "doc-id", "", "source document ID (default: file name)")
	parseCmd.Flags().StringVar(&parseFilingDate, "filing-date", "", "filing date, YYYY-MM-DD")
	parseCmd.Flags().StringVar(&parseOut, "out", "", "output file (default stdout)")
	_ = parseCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(parseCmd)
}
