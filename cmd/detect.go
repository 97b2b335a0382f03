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

	"github.com/ptigroup/deepfin-sub000/internal/detect"
	"github.com/ptigroup/deepfin-sub000/internal/extract"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/table"
)

var (
	detectTypes    []string
	detectProvider string
	detectExplain  bool
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Show which pages hold each statement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		types, err := typesFlag(detectTypes)
		if err != nil {
			return err
		}
		t, err := loadTerms()
		if err != nil {
			return err
		}

		provider := detectProvider
		if provider == "" {
			provider = cfg.Extract.ScanProvider
		}
		ext, err := extract.NewExtractor(provider, cfg.Extract)
		if err != nil {
			return err
		}
		texts, err := ext.ExtractPages(ctx, args[0], 0, 0)
		if err != nil {
			return eris.Wrap(err, "detect: extract pages")
		}
		pages := table.ParsePages(texts)

		d := detect.New(cfg.Detect, t)
		formatDetections(os.Stdout, d.DetectAll(pages, types))

		if detectExplain {
			for _, st := range types {
				_, _ = fmt.Fprintf(os.Stdout, "\n%s candidates:\n", st)
				formatCandidates(os.Stdout, d, pages, st)
			}
		}
		return nil
	},
}

func formatDetections(out io.Writer, results []detect.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATEMENT\tPAGES\tSCORE\tNOTE")
	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t%s\n", r.StatementType, r.Err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d-%d\t%.0f\t\n",
			r.StatementType, r.Range.StartPage, r.Range.EndPage, r.Range.Confidence)
	}
	_ = w.Flush()
}

func formatCandidates(out io.Writer, d *detect.Detector, pages []table.Page, st model.StatementType) {
	byNumber := make(map[int]table.Page, len(pages))
	for _, p := range pages {
		byNumber[p.Number] = p
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PAGE\tKEYWORDS\tDOLLARS\tYEARS\tROWS\tCOLUMNS\tTITLE\tTOTAL")
	for _, c := range d.Candidates(pages, st) {
		b := d.Score(byNumber[c.PageNumber], st)
		_, _ = fmt.Fprintf(w, "%d\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\n",
			c.PageNumber, b.Keywords, b.Dollars, b.MultiYear, b.Rows, b.Columns, b.Title, c.Score)
	}
	_ = w.Flush()
}

func init() {
	detectCmd.Flags().StringSliceVar(&detectTypes, "types", nil, "statement types to detect (default all)")
	detectCmd.Flags().StringVar(&detectProvider, "provider", "", "extraction provider: local, mistral or text (default extract.scan_provider)")
	detectCmd.Flags().BoolVar(&detectExplain, "explain", false, "print the score breakdown of every candidate page")
	rootCmd.AddCommand(detectCmd)
}
