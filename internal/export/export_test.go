package export

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ptigroup/deepfin-sub000/internal/model"
)

func values(pairs ...any) model.Values {
	v := model.NewValues()
	for i := 0; i < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch n := pairs[i+1].(type) {
		case nil:
			v.Set(key, decimal.NullDecimal{})
		case string:
			v.Set(key, decimal.NullDecimal{Decimal: decimal.RequireFromString(n), Valid: true})
		}
	}
	return v
}

func sampleConsolidated() *model.ConsolidatedStatement {
	return &model.ConsolidatedStatement{
		StatementType: model.StatementIncome,
		CompanyName:   "Acme Corp",
		Periods:       []string{"2022", "2023"},
		Sources:       []string{"10k-2023"},
		LineItems: []model.LineItem{
			{
				AccountName: "Total revenue",
				Values:      values("2022", "1000", "2023", "1200"),
				IndentLevel: 0,
				IsTotal:     true,
				OrderIndex:  2,
			},
			{
				AccountName: "Revenue",
				Values:      values("2022", nil, "2023", "-50.5"),
				OrderIndex:  0,
			},
			{
				AccountName:   "Product",
				Values:        values("2022", "800", "2023", "900"),
				IndentLevel:   1,
				ParentSection: model.StringPtr("Revenue"),
				OrderIndex:    1,
			},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleConsolidated()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "income_statement", doc["statement_type"])
	assert.Equal(t, "Acme Corp", doc["company_name"])

	items := doc["line_items"].([]any)
	require.Len(t, items, 3)
	revenue := items[1].(map[string]any)
	vals := revenue["values"].(map[string]any)
	assert.Nil(t, vals["2022"])
	assert.InDelta(t, -50.5, vals["2023"], 0.0001)

	assert.Contains(t, buf.String(), `"2022": null`)
	assert.Contains(t, buf.String(), "\n  \"company_name\"")
}

func TestParsedJSONRoundTrip(t *testing.T) {
	ps := &model.ParsedStatement{
		StatementType:    model.StatementBalanceSheet,
		CompanyName:      "Acme Corp",
		FiscalYears:      []int{2023, 2022},
		Periods:          []string{"2023", "2022"},
		SourceDocumentID: "10k-2023",
		FilingDate:       time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		Scale:            "thousands",
		LineItems: []model.LineItem{{
			AccountName: "Cash",
			Values:      values("2023", "10.25", "2022", nil),
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteParsedJSON(&buf, ps))

	got, err := ReadParsedJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, ps.StatementType, got.StatementType)
	assert.Equal(t, ps.Periods, got.Periods)
	assert.True(t, ps.FilingDate.Equal(got.FilingDate))
	assert.Equal(t, []string{"2023", "2022"}, got.LineItems[0].Values.Keys())

	v, ok := got.LineItems[0].Values.Get("2023")
	require.True(t, ok)
	assert.True(t, v.Decimal.Equal(decimal.RequireFromString("10.25")))
	v, ok = got.LineItems[0].Values.Get("2022")
	require.True(t, ok)
	assert.False(t, v.Valid)
}

func TestReadParsedJSON_UnknownType(t *testing.T) {
	_, err := ReadParsedJSON(bytes.NewBufferString(`{"statement_type":"footnotes"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown statement type")
}

func TestReadParsedJSON_Malformed(t *testing.T) {
	_, err := ReadParsedJSON(bytes.NewBufferString(`{"statement_type":`))
	require.Error(t, err)
}

func TestWriteJSONFile_CreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "cash_flow.json")
	in := &model.ParsedStatement{
		StatementType: model.StatementCashFlow,
		CompanyName:   "Acme Corp",
		Periods:       []string{"2023"},
	}
	require.NoError(t, WriteJSONFile(path, in))

	ps, err := ReadParsedFile(path)
	require.NoError(t, err)
	assert.Equal(t, model.StatementCashFlow, ps.StatementType)
	assert.Equal(t, "Acme Corp", ps.CompanyName)

	_, err = ReadParsedFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "consolidated.xlsx")
	cs := sampleConsolidated()
	bs := &model.ConsolidatedStatement{
		StatementType: model.StatementBalanceSheet,
		CompanyName:   "Acme Corp",
		Periods:       []string{"2023"},
		LineItems: []model.LineItem{{
			AccountName: "Cash",
			Values:      values("2023", "5"),
		}},
	}
	require.NoError(t, WriteWorkbook(path, []*model.ConsolidatedStatement{cs, bs}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	sheet, ok := f.Sheet["Income Statement"]
	require.True(t, ok)
	_, ok = f.Sheet["Balance Sheet"]
	require.True(t, ok)

	require.Len(t, sheet.Rows, 6)
	assert.Equal(t, "Acme Corp", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Income Statement", sheet.Rows[1].Cells[0].String())

	header := sheet.Rows[2].Cells
	require.Len(t, header, 3)
	assert.Equal(t, "Account", header[0].String())
	assert.Equal(t, "2022", header[1].String())
	assert.Equal(t, "2023", header[2].String())

	// Rows follow order_index, not slice order.
	assert.Equal(t, "Revenue", sheet.Rows[3].Cells[0].String())
	assert.Equal(t, "Product", sheet.Rows[4].Cells[0].String())
	assert.Equal(t, "Total revenue", sheet.Rows[5].Cells[0].String())

	revenue := sheet.Rows[3].Cells
	assert.Equal(t, "", revenue[1].Value, "null values stay empty")
	assert.Equal(t, "-50.5", revenue[2].Value)

	product := sheet.Rows[4].Cells
	assert.Equal(t, 1, product[0].GetStyle().Alignment.Indent)
	assert.Equal(t, "800", product[1].Value)

	total := sheet.Rows[5].Cells
	assert.True(t, total[0].GetStyle().Font.Bold)
	assert.Equal(t, "1200", total[2].Value)
}

func TestSignificantDigits(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0", 0},
		{"1200", 4},
		{"-50.5", 3},
		{"1.50", 2},
		{"0.0012", 2},
		{"123456789012345", 15},
		{"1234567890123456.78", 18},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, significantDigits(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestWriteWorkbook_ValueBeyondSheetPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.xlsx")
	cs := &model.ConsolidatedStatement{
		StatementType: model.StatementIncome,
		CompanyName:   "Acme Corp",
		Periods:       []string{"2023"},
		LineItems: []model.LineItem{{
			AccountName: "Revenue",
			Values:      values("2023", "1234567890123456.78"),
		}},
	}
	require.NoError(t, WriteWorkbook(path, []*model.ConsolidatedStatement{cs}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 4)
	got, err := decimal.NewFromString(sheet.Rows[3].Cells[1].Value)
	require.NoError(t, err)
	assert.False(t, got.Equal(decimal.RequireFromString("1234567890123456.78")), "workbook cells hold doubles")
	assert.True(t, got.Sub(decimal.RequireFromString("1234567890123456.78")).Abs().LessThan(decimal.NewFromInt(1)))
}

func TestWriteWorkbook_Empty(t *testing.T) {
	err := WriteWorkbook(filepath.Join(t.TempDir(), "x.xlsx"), nil)
	require.Error(t, err)
}
