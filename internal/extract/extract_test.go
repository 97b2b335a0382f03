package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/resilience"
)

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filing.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0644))
	return path
}

func testMistral(url string) *MistralOCR {
	return &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: url,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
}

func TestNewExtractor(t *testing.T) {
	ext, err := NewExtractor("local", config.ExtractConfig{PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)

	ext, err = NewExtractor("", config.ExtractConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)

	ext, err = NewExtractor("text", config.ExtractConfig{})
	require.NoError(t, err)
	assert.IsType(t, TextFile{}, ext)

	ext, err = NewExtractor("mistral", config.ExtractConfig{MistralKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext)
}

func TestNewExtractor_Errors(t *testing.T) {
	_, err := NewExtractor("mistral", config.ExtractConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires mistral_api_key")

	_, err = NewExtractor("tesseract", config.ExtractConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestNewMistralOCR_Defaults(t *testing.T) {
	m := NewMistralOCR(config.ExtractConfig{MistralKey: "k", TimeoutSecs: 30})
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
	assert.Equal(t, rate.Inf, m.limiter.Limit())

	m = NewMistralOCR(config.ExtractConfig{MistralKey: "k", MistralModel: "custom", MistralRate: 2})
	assert.Equal(t, "custom", m.model)
	assert.Equal(t, rate.Limit(2), m.limiter.Limit())
}

func TestTextFile_ExtractPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filing.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ftwo\fthree\f"), 0644))

	pages, err := TextFile{}.ExtractPages(context.Background(), path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, pages)

	pages, err = TextFile{}.ExtractPages(context.Background(), path, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, pages)

	_, err = TextFile{}.ExtractPages(context.Background(), path, 4, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond document end")

	_, err = TextFile{}.ExtractPages(context.Background(), path, 3, 2)
	require.Error(t, err)

	_, err = TextFile{}.ExtractPages(context.Background(), filepath.Join(t.TempDir(), "none.txt"), 0, 0)
	require.Error(t, err)
}

func TestPdfToText_Args(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)
	assert.Equal(t, []string{"-layout", "a.pdf", "-"}, p.args("a.pdf", 0, 0))
	assert.Equal(t, []string{"-layout", "-f", "3", "-l", "5", "a.pdf", "-"}, p.args("a.pdf", 3, 5))
}

func TestPdfToText_ExtractPages(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "pdftotext")
	script := "#!/bin/sh\nprintf 'first page\\fsecond page\\f'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0755))

	p := NewPdfToText(fakeBin)
	pages, err := p.ExtractPages(context.Background(), "/tmp/dummy.pdf", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first page", "second page"}, pages)
}

func TestPdfToText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractPages(context.Background(), "/tmp/test.pdf", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPdfToText_InvalidRange(t *testing.T) {
	_, err := NewPdfToText("").ExtractPages(context.Background(), "/tmp/test.pdf", 5, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")
}

func TestMistralOCR_ExtractPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")
		assert.Equal(t, []int{3, 4}, req.Pages)

		resp := mistralOCRResponse{Pages: []mistralOCRPage{
			{Index: 4, Markdown: "| Cash | 10 |"},
			{Index: 3, Markdown: "# Balance Sheet"},
		}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	pages, err := testMistral(srv.URL).ExtractPages(context.Background(), writePDF(t), 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"# Balance Sheet", "| Cash | 10 |"}, pages)
}

func TestMistralOCR_WholeDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Pages)
		json.NewEncoder(w).Encode(mistralOCRResponse{}) //nolint:errcheck
	}))
	defer srv.Close()

	pages, err := testMistral(srv.URL).ExtractPages(context.Background(), writePDF(t), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestMistralOCR_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := testMistral(srv.URL).ExtractPages(context.Background(), writePDF(t), 1, 1)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "mistral API returned 429")
}

func TestMistralOCR_AuthErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testMistral(srv.URL).ExtractPages(context.Background(), writePDF(t), 1, 1)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := testMistral(srv.URL).ExtractPages(context.Background(), writePDF(t), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_FileNotFound(t *testing.T) {
	_, err := testMistral("http://unused").ExtractPages(context.Background(), "/nonexistent/file.pdf", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PDF")
}

func TestMistralOCR_HalfOpenRange(t *testing.T) {
	_, err := testMistral("http://unused").ExtractPages(context.Background(), writePDF(t), 2, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")
}
