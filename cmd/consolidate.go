package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/consolidate"
	"github.com/ptigroup/deepfin-sub000/internal/export"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

var (
	consolidateOut   string
	consolidateExcel string
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <parsed.json...>",
	Short: "Merge parsed statements of one type into a single statement",
	Long:  "Reads parsed statements written by 'deepfin parse' or a pipeline run and merges them into one multi-year statement. Newer filings win on conflicting values.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTerms()
		if err != nil {
			return err
		}

		cs, err := consolidateFiles(t, args)
		if err != nil {
			return err
		}
		zap.L().Info("consolidate: statement merged",
			zap.String("statement_type", string(cs.StatementType)),
			zap.Strings("sources", cs.Sources),
			zap.Strings("periods", cs.Periods),
			zap.Int("line_items", len(cs.LineItems)),
			zap.Int("discrepancies", len(cs.Discrepancies)),
		)
		for _, w := range cs.Warnings {
			zap.L().Warn("consolidate: validation warning", zap.String("warning", w))
		}

		if consolidateExcel != "" {
			if err := export.WriteWorkbook(consolidateExcel, []*model.ConsolidatedStatement{cs}); err != nil {
				return err
			}
		}
		if consolidateOut == "" {
			return export.WriteJSON(cmd.OutOrStdout(), cs)
		}
		return export.WriteJSONFile(consolidateOut, cs)
	},
}

// consolidateFiles reads parsed statements from paths and merges them.
func consolidateFiles(t *terms.Terms, paths []string) (*model.ConsolidatedStatement, error) {
	stmts := make([]*model.ParsedStatement, 0, len(paths))
	for _, p := range paths {
		ps, err := export.ReadParsedFile(p)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, ps)
	}
	cs, err := consolidate.New(cfg.Consolidate, t).Consolidate(stmts)
	if err != nil {
		return nil, eris.Wrap(err, "consolidate")
	}
	return cs, nil
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateOut, "out", "", "output JSON file (default stdout)")
	consolidateCmd.Flags().StringVar(&consolidateExcel, "excel", "", "also write an Excel workbook to this path")
	rootCmd.AddCommand(consolidateCmd)
}
