// Package detect locates financial statements inside a document using local
// heuristics over the extracted page text.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/table"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

var (
	dollarRe = regexp.MustCompile(`\$\s*\(?\d{1,3}(?:,\d{3})+(?:\.\d+)?`)
	yearRe   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// NotFoundError is returned when no page reaches the minimum score.
type NotFoundError struct {
	StatementType model.StatementType
	BestPage      int
	BestScore     float64
}

func (e *NotFoundError) Error() string {
	if e.BestPage == 0 {
		return fmt.Sprintf("detect: %s not found: no candidate pages", e.StatementType)
	}
	return fmt.Sprintf("detect: %s not found: best page %d scored %.0f", e.StatementType, e.BestPage, e.BestScore)
}

// Breakdown is the per-signal score of one page for one statement type.
type Breakdown struct {
	KeywordHits int     `json:"keyword_hits"`
	Keywords    float64 `json:"keywords"`
	Dollars     float64 `json:"dollars"`
	MultiYear   float64 `json:"multi_year"`
	Rows        float64 `json:"rows"`
	Columns     float64 `json:"columns"`
	Title       float64 `json:"title"`
	Total       float64 `json:"total"`
}

// Result pairs a statement type with its detected range or failure.
type Result struct {
	StatementType model.StatementType
	Range         model.DetectedRange
	Err           error
}

// Detector scores pages against the configured statement vocabulary. It
// holds no mutable state and is safe for concurrent use.
type Detector struct {
	cfg   config.DetectConfig
	terms *terms.Terms
}

// New creates a Detector.
func New(cfg config.DetectConfig, t *terms.Terms) *Detector {
	return &Detector{cfg: cfg, terms: t}
}

// Detect returns the page range holding st, or a *NotFoundError.
func (d *Detector) Detect(pages []table.Page, st model.StatementType) (model.DetectedRange, error) {
	vocab := d.terms.Statement(st)
	if vocab == nil {
		return model.DetectedRange{}, &NotFoundError{StatementType: st}
	}

	candidates := d.Candidates(pages, st)
	log := zap.L().With(zap.String("statement_type", string(st)))

	var best *model.PageCandidate
	nf := &NotFoundError{StatementType: st}
	for i := range candidates {
		c := &candidates[i]
		log.Debug("detect: candidate scored",
			zap.Int("page", c.PageNumber),
			zap.Float64("score", c.Score),
		)
		if c.Score > nf.BestScore || nf.BestPage == 0 {
			nf.BestPage, nf.BestScore = c.PageNumber, c.Score
		}
		if c.Score < d.cfg.MinScore {
			continue
		}
		// candidates are in page order, so ties keep the lowest page
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	if best == nil {
		return model.DetectedRange{}, nf
	}

	start, end := d.expand(pages, best.PageNumber, st)
	r := model.DetectedRange{
		StatementType: st,
		StartPage:     start,
		EndPage:       end,
		Confidence:    best.Score,
	}
	log.Info("detect: statement located",
		zap.Int("anchor", best.PageNumber),
		zap.Int("start_page", start),
		zap.Int("end_page", end),
		zap.Float64("score", best.Score),
	)
	return r, nil
}

// DetectAll runs Detect for every requested type, in order.
func (d *Detector) DetectAll(pages []table.Page, types []model.StatementType) []Result {
	out := make([]Result, 0, len(types))
	for _, st := range types {
		r, err := d.Detect(pages, st)
		out = append(out, Result{StatementType: st, Range: r, Err: err})
	}
	return out
}

// Candidates runs the first two funnel stages and scores the survivors.
func (d *Detector) Candidates(pages []table.Page, st model.StatementType) []model.PageCandidate {
	vocab := d.terms.Statement(st)
	if vocab == nil {
		return nil
	}
	var out []model.PageCandidate
	for _, p := range pages {
		if !d.isCandidate(p, vocab) {
			continue
		}
		if reason := d.rejectReason(p, vocab); reason != "" {
			zap.L().Debug("detect: candidate rejected",
				zap.String("statement_type", string(st)),
				zap.Int("page", p.Number),
				zap.String("reason", reason),
			)
			continue
		}
		rows := p.TableRows(d.cfg.MinTableColumns)
		cells := make([][]string, len(rows))
		for i, r := range rows {
			cells[i] = r.Cells
		}
		out = append(out, model.PageCandidate{
			PageNumber: p.Number,
			RawText:    p.Text,
			TableRows:  cells,
			Score:      d.score(p, vocab).Total,
		})
	}
	return out
}

// Score returns the scoring breakdown for page p. It does not apply the
// candidate or validation stages.
func (d *Detector) Score(p table.Page, st model.StatementType) Breakdown {
	vocab := d.terms.Statement(st)
	if vocab == nil {
		return Breakdown{}
	}
	return d.score(p, vocab)
}

func (d *Detector) isCandidate(p table.Page, vocab *terms.Statement) bool {
	if !p.IsTableLike(d.cfg.MinTableColumns, d.cfg.MinTableRows) {
		return false
	}
	return vocab.KeywordHits(strings.ToLower(p.Text)) > 0
}

func (d *Detector) rejectReason(p table.Page, vocab *terms.Statement) string {
	heading := p.Heading(d.cfg.HeaderScanRows)
	if !vocab.MatchesTitle(heading) {
		return "no title"
	}
	if pattern, ok := d.terms.Rejected(heading); ok {
		return "reject pattern " + pattern
	}
	if n := strings.Count(p.Text, "%"); n > d.cfg.MaxPercentSigns {
		return fmt.Sprintf("%d percent signs", n)
	}
	return ""
}

func (d *Detector) score(p table.Page, vocab *terms.Statement) Breakdown {
	var b Breakdown

	b.KeywordHits = vocab.KeywordHits(strings.ToLower(p.Text))
	b.Keywords = min(float64(b.KeywordHits)*d.cfg.KeywordPoints, d.cfg.KeywordCap)

	distinct := make(map[string]bool)
	for _, tok := range dollarRe.FindAllString(p.Text, -1) {
		distinct[strings.Join(strings.Fields(tok), "")] = true
	}
	if len(distinct) >= d.cfg.MinDollarTokens {
		b.Dollars = d.cfg.DollarBonus
	}

	if countYears(p, d.cfg.HeaderScanRows) >= 2 {
		b.MultiYear = d.cfg.MultiYearBonus
	}

	tableRows := p.TableRows(d.cfg.MinTableColumns)
	if len(tableRows) >= d.cfg.MinTableRows {
		b.Rows = d.cfg.RowsBonus
	}
	if cols, n := p.DominantColumnCount(); cols >= d.cfg.MinTableColumns && len(tableRows) > 0 && 2*n >= len(tableRows) {
		b.Columns = d.cfg.ColumnsBonus
	}

	if vocab.MatchesStrictTitle(p.Heading(d.cfg.HeaderScanRows)) {
		b.Title = d.cfg.TitleBonus
	}

	b.Total = b.Keywords + b.Dollars + b.MultiYear + b.Rows + b.Columns + b.Title
	return b
}

// countYears returns the number of distinct four-digit years in the top rows.
func countYears(p table.Page, topRows int) int {
	seen := make(map[string]bool)
	for i, r := range p.Rows {
		if i >= topRows {
			break
		}
		for _, y := range yearRe.FindAllString(r.Line, -1) {
			seen[y] = true
		}
	}
	return len(seen)
}
