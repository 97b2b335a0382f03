// Package pipeline runs detection, parsing, consolidation and export over a
// batch of filings.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/consolidate"
	"github.com/ptigroup/deepfin-sub000/internal/detect"
	"github.com/ptigroup/deepfin-sub000/internal/extract"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/parse"
	"github.com/ptigroup/deepfin-sub000/internal/resilience"
	"github.com/ptigroup/deepfin-sub000/internal/store"
	"github.com/ptigroup/deepfin-sub000/internal/table"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

// Pipeline orchestrates one run over a batch of documents.
type Pipeline struct {
	cfg      *config.Config
	scan     extract.Extractor
	tables   extract.Extractor
	store    store.Store
	detector *detect.Detector
	parser   *parse.Parser
	engine   *consolidate.Engine
	retry    resilience.Policy
	now      func() time.Time
}

// New creates a Pipeline. scan reads whole documents for detection, tables
// reads detected ranges for parsing; passing the same extractor for both
// reuses the scan text. st may be nil to skip run history.
func New(cfg *config.Config, t *terms.Terms, scan, tables extract.Extractor, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		scan:     scan,
		tables:   tables,
		store:    st,
		detector: detect.New(cfg.Detect, t),
		parser:   parse.New(cfg.Parse, t),
		engine:   consolidate.New(cfg.Consolidate, t),
		retry:    resilience.PolicyFromConfig(cfg.Extract),
		now:      time.Now,
	}
}

// Request describes one run.
type Request struct {
	Company   string
	Documents []model.Document
	// Types defaults to every statement type.
	Types []model.StatementType
	// OutputDir defaults to output.dir.
	OutputDir string
}

// Result holds everything a run produced.
type Result struct {
	Report       *model.RunReport
	Parsed       []*model.ParsedStatement
	Consolidated []*model.ConsolidatedStatement
}

type docResult struct {
	outcomes   []model.Outcome
	statements []*model.ParsedStatement
}

// Run processes every document concurrently, consolidates each statement
// type in filing order and writes the run artifacts. Per-document failures
// are recorded as outcomes; only invalid requests, cancellation and output
// write failures return an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	docs, err := prepareDocuments(req.Documents)
	if err != nil {
		return nil, err
	}
	types := req.Types
	if len(types) == 0 {
		types = model.AllStatementTypes()
	}
	outRoot := req.OutputDir
	if outRoot == "" {
		outRoot = p.cfg.Output.Dir
	}

	started := p.now().UTC()
	runID := uuid.New().String()
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, req.Company, len(docs))
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
	}

	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.Int("documents", len(docs)),
		zap.Int("statement_types", len(types)),
	)

	results := make([]docResult, len(docs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Batch.MaxConcurrentDocuments)
	for i, doc := range docs {
		if doc.Company == "" {
			doc.Company = req.Company
		}
		g.Go(func() error {
			results[i] = p.processDocument(gCtx, doc, types)
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	res := &Result{}
	for _, r := range results {
		res.Parsed = append(res.Parsed, r.statements...)
	}
	res.Consolidated = p.consolidateAll(results, types, log)

	outDir := filepath.Join(outRoot, runID)
	report := &model.RunReport{
		ID:         runID,
		Company:    reportCompany(req.Company, res),
		Documents:  len(docs),
		OutputDir:  outDir,
		StartedAt:  started,
		FinishedAt: p.now().UTC(),
	}
	for _, r := range results {
		report.Outcomes = append(report.Outcomes, r.outcomes...)
	}
	report.Status = model.Summarize(report.Outcomes)
	res.Report = report

	if err := p.writeOutputs(outDir, res); err != nil {
		return nil, err
	}
	p.record(ctx, report, log)

	log.Info("pipeline: run complete",
		zap.String("status", string(report.Status)),
		zap.Int("parsed", len(res.Parsed)),
		zap.Int("consolidated", len(res.Consolidated)),
		zap.String("output_dir", outDir),
	)
	return res, nil
}

// prepareDocuments fills missing document ids from file names and rejects
// duplicates.
func prepareDocuments(docs []model.Document) ([]model.Document, error) {
	if len(docs) == 0 {
		return nil, eris.New("pipeline: no documents")
	}
	out := make([]model.Document, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		if d.Path == "" {
			return nil, eris.Errorf("pipeline: document %d has no path", i+1)
		}
		if d.ID == "" {
			d.ID = DocumentID(d.Path)
		}
		if seen[d.ID] {
			return nil, eris.Errorf("pipeline: duplicate document id %q", d.ID)
		}
		seen[d.ID] = true
		out[i] = d
	}
	return out, nil
}

// processDocument produces one outcome per requested statement type. It
// never fails; extraction errors become parse_failed outcomes.
func (p *Pipeline) processDocument(ctx context.Context, doc model.Document, types []model.StatementType) docResult {
	log := zap.L().With(zap.String("document", doc.ID))
	var res docResult

	fail := func(st model.StatementType, status model.OutcomeStatus, reason string, rng *model.DetectedRange) {
		res.outcomes = append(res.outcomes, model.Outcome{
			DocumentID:    doc.ID,
			StatementType: st,
			Status:        status,
			Reason:        reason,
			Range:         rng,
		})
	}

	scanPolicy := p.retry
	scanPolicy.OnRetry = resilience.LogRetry(doc.ID, "scan")
	texts, err := resilience.Do(ctx, scanPolicy, func(ctx context.Context) ([]string, error) {
		return p.scan.ExtractPages(ctx, doc.Path, 0, 0)
	})
	if err != nil {
		log.Error("pipeline: scan extraction failed", zap.Error(err))
		for _, st := range types {
			fail(st, model.OutcomeParseFailed, "extraction failed: "+err.Error(), nil)
		}
		return res
	}
	pages := table.ParsePages(texts)

	for _, det := range p.detector.DetectAll(pages, types) {
		if det.Err != nil {
			fail(det.StatementType, model.OutcomeNotDetected, det.Err.Error(), nil)
			continue
		}
		rng := det.Range

		rangePages, err := p.rangePages(ctx, doc, pages, rng)
		if err != nil {
			log.Error("pipeline: table extraction failed",
				zap.String("statement_type", string(rng.StatementType)),
				zap.Error(err),
			)
			fail(rng.StatementType, model.OutcomeParseFailed, "extraction failed: "+err.Error(), &rng)
			continue
		}

		stmt, err := p.parser.Parse(parse.Input{
			StatementType:    rng.StatementType,
			CompanyName:      doc.Company,
			SourceDocumentID: doc.ID,
			FilingDate:       doc.FilingDate,
		}, rangePages)
		if err != nil {
			log.Warn("pipeline: parse failed",
				zap.String("statement_type", string(rng.StatementType)),
				zap.Error(err),
			)
			fail(rng.StatementType, model.OutcomeParseFailed, err.Error(), &rng)
			continue
		}

		res.statements = append(res.statements, stmt)
		res.outcomes = append(res.outcomes, model.Outcome{
			DocumentID:    doc.ID,
			StatementType: rng.StatementType,
			Status:        model.OutcomeParsedNotConsolidated,
			Range:         &rng,
			LineItems:     len(stmt.LineItems),
		})
	}
	return res
}

// rangePages returns the detected pages ready for parsing. With a separate
// table extractor only the range is re-extracted.
func (p *Pipeline) rangePages(ctx context.Context, doc model.Document, scanned []table.Page, rng model.DetectedRange) ([]table.Page, error) {
	if p.tables == nil || p.tables == p.scan {
		return scanned[rng.StartPage-1 : rng.EndPage], nil
	}

	policy := p.retry
	policy.OnRetry = resilience.LogRetry(doc.ID, "table")
	texts, err := resilience.Do(ctx, policy, func(ctx context.Context) ([]string, error) {
		return p.tables.ExtractPages(ctx, doc.Path, rng.StartPage, rng.EndPage)
	})
	if err != nil {
		return nil, err
	}
	out := make([]table.Page, len(texts))
	for i, text := range texts {
		out[i] = table.ParsePage(rng.StartPage+i, text)
	}
	return out, nil
}

// consolidateAll merges each statement type with enough sources and updates
// the matching outcomes in place.
func (p *Pipeline) consolidateAll(results []docResult, types []model.StatementType, log *zap.Logger) []*model.ConsolidatedStatement {
	var out []*model.ConsolidatedStatement
	for _, st := range types {
		var stmts []*model.ParsedStatement
		for _, r := range results {
			for _, s := range r.statements {
				if s.StatementType == st {
					stmts = append(stmts, s)
				}
			}
		}
		if len(stmts) == 0 {
			continue
		}

		if len(stmts) < p.cfg.Consolidate.MinSources {
			setOutcomes(results, st, model.OutcomeParsedNotConsolidated,
				fmt.Sprintf("insufficient sources (%d of %d)", len(stmts), p.cfg.Consolidate.MinSources))
			continue
		}

		cs, err := p.engine.Consolidate(stmts)
		if err != nil {
			log.Error("pipeline: consolidation failed",
				zap.String("statement_type", string(st)),
				zap.Error(err),
			)
			setOutcomes(results, st, model.OutcomeParseFailed, "consolidation failed: "+err.Error())
			continue
		}
		setOutcomes(results, st, model.OutcomeConsolidated, "")
		out = append(out, cs)
	}
	return out
}

func setOutcomes(results []docResult, st model.StatementType, status model.OutcomeStatus, reason string) {
	for i := range results {
		for j := range results[i].outcomes {
			o := &results[i].outcomes[j]
			if o.StatementType == st && o.Status.Parsed() {
				o.Status = status
				o.Reason = reason
			}
		}
	}
}

func reportCompany(requested string, res *Result) string {
	if requested != "" {
		return requested
	}
	for _, cs := range res.Consolidated {
		if cs.CompanyName != "" {
			return cs.CompanyName
		}
	}
	for _, ps := range res.Parsed {
		if ps.CompanyName != "" {
			return ps.CompanyName
		}
	}
	return ""
}

// record persists outcomes and the final report. Store failures are logged
// and never fail the run.
func (p *Pipeline) record(ctx context.Context, report *model.RunReport, log *zap.Logger) {
	if p.store == nil {
		return
	}
	for _, o := range report.Outcomes {
		if err := p.store.RecordOutcome(ctx, report.ID, o); err != nil {
			log.Warn("pipeline: failed to record outcome",
				zap.String("document", o.DocumentID),
				zap.String("statement_type", string(o.StatementType)),
				zap.Error(err),
			)
		}
	}
	if err := p.store.CompleteRun(ctx, report.ID, report); err != nil {
		log.Warn("pipeline: failed to complete run", zap.Error(err))
	}
}

// DocumentID derives a document ID from a file path: the base name without
// its extension.
func DocumentID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
