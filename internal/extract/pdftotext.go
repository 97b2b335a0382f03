package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/ptigroup/deepfin-sub000/internal/table"
)

// PdfToText extracts layout-preserving text with the pdftotext CLI.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

func (p *PdfToText) args(path string, first, last int) []string {
	args := []string{"-layout"}
	if first > 0 {
		args = append(args, "-f", strconv.Itoa(first))
	}
	if last > 0 {
		args = append(args, "-l", strconv.Itoa(last))
	}
	return append(args, path, "-")
}

// ExtractPages implements Extractor. pdftotext ends every page with a form
// feed, which is where the output is split.
func (p *PdfToText) ExtractPages(ctx context.Context, path string, first, last int) ([]string, error) {
	if first < 0 || last < 0 || (last > 0 && last < first) {
		return nil, eris.Errorf("extract: invalid page range %d..%d", first, last)
	}

	cmd := exec.CommandContext(ctx, p.binPath, p.args(path, first, last)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extract: pdftotext failed for %s: %s", path, stderr.String())
	}

	return table.SplitPages(stdout.String()), nil
}
