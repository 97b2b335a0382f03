// Package extract turns PDF pages into text for detection and parsing.
package extract

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/table"
)

// Extractor returns the text of pages first..last (1-based, inclusive) of a
// document, one string per page. first and last of 0 mean the whole document.
type Extractor interface {
	ExtractPages(ctx context.Context, path string, first, last int) ([]string, error)
}

// NewExtractor creates the Extractor named by provider: "local" runs
// pdftotext, "mistral" calls the Mistral OCR API and "text" reads
// form-feed separated text files.
func NewExtractor(provider string, cfg config.ExtractConfig) (Extractor, error) {
	switch provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("extract: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg), nil
	case "text":
		return TextFile{}, nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", provider)
	}
}

// TextFile reads documents that were already converted to text, with pages
// separated by form feeds.
type TextFile struct{}

// ExtractPages implements Extractor.
func (TextFile) ExtractPages(_ context.Context, path string, first, last int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", path)
	}
	return pageWindow(table.SplitPages(string(data)), first, last)
}

// pageWindow returns pages first..last of a full document.
func pageWindow(pages []string, first, last int) ([]string, error) {
	if first == 0 && last == 0 {
		return pages, nil
	}
	if first < 1 || last < first {
		return nil, eris.Errorf("extract: invalid page range %d..%d", first, last)
	}
	if first > len(pages) {
		return nil, eris.Errorf("extract: page %d beyond document end (%d pages)", first, len(pages))
	}
	if last > len(pages) {
		last = len(pages)
	}
	return pages[first-1 : last], nil
}
