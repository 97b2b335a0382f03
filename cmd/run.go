package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ptigroup/deepfin-sub000/internal/extract"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/pipeline"
)

var (
	runManifest string
	runCompany  string
	runTypes    []string
	runOut      string
)

var runCmd = &cobra.Command{
	Use:   "run [pdf...]",
	Short: "Detect, parse and consolidate statements from filings",
	Long:  "Runs the full pipeline over the given PDFs or a YAML manifest and writes parsed, consolidated and report files under <output.dir>/<run-id>/.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := buildRequest(args)
		if err != nil {
			return err
		}

		t, err := loadTerms()
		if err != nil {
			return err
		}

		scan, err := extract.NewExtractor(cfg.Extract.ScanProvider, cfg.Extract)
		if err != nil {
			return eris.Wrap(err, "scan extractor")
		}
		tables := scan
		if cfg.Extract.TableProvider != cfg.Extract.ScanProvider {
			tables, err = extract.NewExtractor(cfg.Extract.TableProvider, cfg.Extract)
			if err != nil {
				return eris.Wrap(err, "table extractor")
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		res, err := pipeline.New(cfg, t, scan, tables, st).Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		formatOutcomes(os.Stdout, res.Report)
		if res.Report.Status == model.RunStatusFailed {
			return eris.Errorf("run %s failed: no statements produced", res.Report.ID)
		}
		return nil
	},
}

// buildRequest assembles a run request from the manifest or positional
// PDFs, with flags overriding manifest values.
func buildRequest(args []string) (pipeline.Request, error) {
	var req pipeline.Request
	switch {
	case runManifest != "" && len(args) > 0:
		return req, eris.New("pass either --manifest or PDF paths, not both")
	case runManifest != "":
		m, err := pipeline.LoadManifest(runManifest)
		if err != nil {
			return req, err
		}
		if req, err = m.Request(); err != nil {
			return req, err
		}
	case len(args) > 0:
		for _, path := range args {
			req.Documents = append(req.Documents, model.Document{Path: path})
		}
	default:
		return req, eris.New("no documents: pass PDF paths or --manifest")
	}

	if runCompany != "" {
		req.Company = runCompany
	}
	if len(runTypes) > 0 {
		types, err := pipeline.ParseTypes(runTypes)
		if err != nil {
			return req, err
		}
		req.Types = types
	}
	req.OutputDir = runOut
	return req, nil
}

// formatOutcomes writes the run status and one line per outcome to w.
func formatOutcomes(out io.Writer, r *model.RunReport) {
	_, _ = fmt.Fprintf(out, "Run %s: %s\n", r.ID, r.Status)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOCUMENT\tSTATEMENT\tRESULT\tPAGES\tREASON")
	for _, o := range r.Outcomes {
		pages := "-"
		if o.Range != nil {
			pages = fmt.Sprintf("%d-%d", o.Range.StartPage, o.Range.EndPage)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.DocumentID, o.StatementType, o.Status, pages, o.Reason)
	}
	_ = w.Flush()
	if r.OutputDir != "" {
		_, _ = fmt.Fprintf(out, "Output: %s\n", r.OutputDir)
	}
}

func init() {
	runCmd.Flags().StringVar(&runManifest, "manifest", "", "YAML manifest listing the filings")
	runCmd.Flags().StringVar(&runCompany, "company", "", "company name (overrides the statement preamble)")
	runCmd.Flags().StringSliceVar(&runTypes, "types", nil, "statement types to extract (default all)")
	runCmd.Flags().StringVar(&runOut, "out", "", "output directory (default output.dir)")
	rootCmd.AddCommand(runCmd)
}
