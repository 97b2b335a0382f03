package export

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

const (
	integerFormat = "#,##0;(#,##0)"
	decimalFormat = "#,##0.00;(#,##0.00)"

	// spreadsheet numbers are IEEE doubles
	maxExactDigits = 15
)

// WriteWorkbook writes one sheet per statement to path. Rows follow
// order_index, columns follow the period axis, indentation uses the cell
// alignment indent and totals are bold.
func WriteWorkbook(path string, statements []*model.ConsolidatedStatement) error {
	if len(statements) == 0 {
		return eris.New("export: no statements for workbook")
	}

	f := xlsx.NewFile()
	for _, cs := range statements {
		if err := addStatementSheet(f, cs); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func addStatementSheet(f *xlsx.File, cs *model.ConsolidatedStatement) error {
	sheet, err := f.AddSheet(cs.StatementType.Title())
	if err != nil {
		return eris.Wrapf(err, "export: add sheet for %s", cs.StatementType)
	}

	title := sheet.AddRow()
	setString(title.AddCell(), cs.CompanyName, true, 0)
	setString(sheet.AddRow().AddCell(), cs.StatementType.Title(), true, 0)

	header := sheet.AddRow()
	setString(header.AddCell(), "Account", true, 0)
	for _, p := range cs.Periods {
		setString(header.AddCell(), p, true, 0)
	}

	for _, li := range sortedItems(cs.LineItems) {
		row := sheet.AddRow()
		setString(row.AddCell(), li.AccountName, li.IsTotal, li.IndentLevel)
		for _, p := range cs.Periods {
			cell := row.AddCell()
			v, _ := li.Values.Get(p)
			if !v.Valid {
				continue
			}
			setNumber(cell, v.Decimal, li.IsTotal)
		}
	}
	return nil
}

// sortedItems returns items ordered by order_index without touching the input.
func sortedItems(items []model.LineItem) []model.LineItem {
	out := make([]model.LineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

func setString(cell *xlsx.Cell, s string, bold bool, indent int) {
	cell.SetString(s)
	if !bold && indent == 0 {
		return
	}
	style := xlsx.NewStyle()
	if bold {
		style.Font.Bold = true
		style.ApplyFont = true
	}
	if indent > 0 {
		style.Alignment.Indent = indent
		style.ApplyAlignment = true
	}
	cell.SetStyle(style)
}

// setNumber writes d as a numeric cell. Values with more than 15 significant
// digits cannot be held exactly by the sheet and are rounded; the JSON output
// keeps the exact value.
func setNumber(cell *xlsx.Cell, d decimal.Decimal, bold bool) {
	format := integerFormat
	if !d.Equal(d.Truncate(0)) {
		format = decimalFormat
	}
	if significantDigits(d) > maxExactDigits {
		zap.L().Warn("export: value exceeds spreadsheet precision, rounded in workbook",
			zap.String("value", d.String()),
		)
	}
	cell.SetFloatWithFormat(d.InexactFloat64(), format)
	if bold {
		style := xlsx.NewStyle()
		style.Font.Bold = true
		style.ApplyFont = true
		cell.SetStyle(style)
	}
}

// significantDigits counts the digits of d without leading zeros or trailing
// fractional zeros.
func significantDigits(d decimal.Decimal) int {
	digits := strings.TrimLeft(d.Abs().Coefficient().String(), "0")
	if d.Exponent() < 0 {
		digits = strings.TrimRight(digits, "0")
	}
	return len(digits)
}
