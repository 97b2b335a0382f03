package detect

import (
	"strings"

	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/table"
)

// expand grows the anchor into the smallest range that covers a statement
// split across pages. The page before the anchor joins when it carries this
// statement's own title; following pages join while they look like the same
// table and do not start another statement.
func (d *Detector) expand(pages []table.Page, anchor int, st model.StatementType) (int, int) {
	byNumber := make(map[int]table.Page, len(pages))
	for _, p := range pages {
		byNumber[p.Number] = p
	}
	vocab := d.terms.Statement(st)
	anchorCols, _ := byNumber[anchor].DominantColumnCount()

	start, end := anchor, anchor

	if prev, ok := byNumber[anchor-1]; ok {
		heading := prev.Heading(d.cfg.HeaderScanRows)
		_, rejected := d.terms.Rejected(heading)
		if !rejected && vocab.MatchesTitle(heading) && d.continues(prev) && !d.startsOther(prev, st) {
			start = anchor - 1
		}
	}

	for off := 1; off <= d.cfg.MaxForwardPages; off++ {
		next, ok := byNumber[anchor+off]
		if !ok || !d.continues(next) || d.startsOther(next, st) {
			break
		}
		if _, rejected := d.terms.Rejected(next.Heading(d.cfg.HeaderScanRows)); rejected {
			break
		}
		cols, _ := next.DominantColumnCount()
		sameFamily := vocab.KeywordHits(strings.ToLower(next.Text)) > 0 || vocab.MatchesTitle(next.Heading(d.cfg.HeaderScanRows))
		if !sameFamily && cols != anchorCols {
			break
		}
		end = anchor + off
	}
	return start, end
}

// continues reports whether p holds enough tabular rows to be part of a table.
func (d *Detector) continues(p table.Page) bool {
	return p.IsTableLike(2, d.cfg.ContinuationRows)
}

// startsOther reports whether p opens a different statement type.
func (d *Detector) startsOther(p table.Page, st model.StatementType) bool {
	heading := p.Heading(d.cfg.HeaderScanRows)
	for _, other := range d.terms.Types() {
		if other == st {
			continue
		}
		v := d.terms.Statement(other)
		if v.MatchesStrictTitle(heading) || v.MatchesTitle(heading) {
			if !d.terms.Statement(st).MatchesTitle(heading) {
				return true
			}
		}
	}
	return false
}
