package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

// MistralOCR extracts markdown tables from PDFs with the Mistral OCR API.
// Calls share one limiter so concurrent documents respect the account quota.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewMistralOCR creates a MistralOCR extractor from the extract settings.
func NewMistralOCR(cfg config.ExtractConfig) *MistralOCR {
	model := cfg.MistralModel
	if model == "" {
		model = defaultMistralModel
	}
	limit := rate.Limit(cfg.MistralRate)
	if cfg.MistralRate <= 0 {
		limit = rate.Inf
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return &MistralOCR{
		apiKey:   cfg.MistralKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
	Pages    []int              `json:"pages,omitempty"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractPages implements Extractor. Throttling and server errors come back
// as resilience.TransientError so callers can retry them.
func (m *MistralOCR) ExtractPages(ctx context.Context, path string, first, last int) ([]string, error) {
	if first < 0 || last < 0 || (last > 0 && last < first) || (first == 0) != (last == 0) {
		return nil, eris.Errorf("extract: invalid page range %d..%d", first, last)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read PDF %s", path)
	}

	reqBody := mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	}
	// The API numbers pages from zero.
	for p := first; p > 0 && p <= last; p++ {
		reqBody.Pages = append(reqBody.Pages, p-1)
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal mistral request")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: mistral rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "extract: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "extract: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "extract: read mistral response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := eris.Errorf("extract: mistral API returned %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, eris.Wrap(err, "extract: unmarshal mistral response")
	}

	sort.SliceStable(ocrResp.Pages, func(i, j int) bool {
		return ocrResp.Pages[i].Index < ocrResp.Pages[j].Index
	})
	pages := make([]string, len(ocrResp.Pages))
	for i, p := range ocrResp.Pages {
		pages[i] = p.Markdown
	}
	return pages, nil
}
