package parse

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptigroup/deepfin-sub000/internal/amount"
	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/table"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

const incomePage = `ACME CORP
CONSOLIDATED STATEMENTS OF INCOME
(In thousands)
                               2022          2021
Revenue                   $ 140,000     $ 130,000
Cost of revenue              60,000        55,000
Operating expenses           20,000        18,000
Net income                $  60,000     $  57,000
`

const balancePage = `CONSOLIDATED BALANCE SHEETS
                                     2022          2021
Current assets:
Cash                               100            90
Receivables                         50            40
Total current assets               150           130
Goodwill                            20            20
Total assets                       170           150
`

func newParser() *Parser {
	return New(config.DefaultParse(), terms.Default())
}

func incomeInput() Input {
	return Input{StatementType: model.StatementIncome, SourceDocumentID: "10k-2022"}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func value(t *testing.T, li model.LineItem, period string) decimal.NullDecimal {
	t.Helper()
	v, ok := li.Values.Get(period)
	require.True(t, ok, "period %q missing from %q", period, li.AccountName)
	return v
}

func TestParse_IncomePage(t *testing.T) {
	t.Parallel()

	stmt, err := newParser().ParseText(incomeInput(), incomePage)
	require.NoError(t, err)

	assert.Equal(t, []string{"2022", "2021"}, stmt.Periods)
	assert.Equal(t, []int{2022, 2021}, stmt.FiscalYears)
	assert.Equal(t, "ACME CORP", stmt.CompanyName)
	assert.Equal(t, "thousands", stmt.Scale)
	assert.Equal(t, "10k-2022", stmt.SourceDocumentID)
	require.Len(t, stmt.LineItems, 4)

	rev := stmt.LineItems[0]
	assert.Equal(t, "Revenue", rev.AccountName)
	assert.Nil(t, rev.CanonicalName)
	assert.True(t, value(t, rev, "2022").Decimal.Equal(dec("140000")))
	assert.True(t, value(t, rev, "2021").Decimal.Equal(dec("130000")))
	assert.False(t, rev.IsTotal)

	ni := stmt.LineItems[3]
	assert.Equal(t, "Net income", ni.AccountName)
	assert.True(t, ni.IsTotal)
	assert.Equal(t, 0, ni.IndentLevel)
	assert.Nil(t, ni.ParentSection)
}

func TestParse_CallerCompanyWins(t *testing.T) {
	t.Parallel()

	in := incomeInput()
	in.CompanyName = "Acme Corporation"
	stmt, err := newParser().ParseText(in, incomePage)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", stmt.CompanyName)
}

func TestParse_OrderPreserved(t *testing.T) {
	t.Parallel()

	stmt, err := newParser().ParseText(Input{StatementType: model.StatementBalanceSheet}, balancePage)
	require.NoError(t, err)

	var names []string
	for i, li := range stmt.LineItems {
		assert.Equal(t, i, li.OrderIndex)
		names = append(names, li.AccountName)
	}
	assert.Equal(t, []string{"Cash", "Receivables", "Total current assets", "Goodwill", "Total assets"}, names)
}

func TestParse_TotalClosesSection(t *testing.T) {
	t.Parallel()

	stmt, err := newParser().ParseText(Input{StatementType: model.StatementBalanceSheet}, balancePage)
	require.NoError(t, err)
	items := stmt.LineItems

	cash := items[0]
	assert.Equal(t, 1, cash.IndentLevel)
	require.NotNil(t, cash.ParentSection)
	assert.Equal(t, "Current assets", *cash.ParentSection)

	total := items[2]
	assert.True(t, total.IsTotal)
	assert.Equal(t, 0, total.IndentLevel)
	assert.Equal(t, "Current assets", total.Parent())

	goodwill := items[3]
	assert.Equal(t, 0, goodwill.IndentLevel, "row after a total returns to the level before the header")
	assert.Nil(t, goodwill.ParentSection)
}

func TestParse_LeadingWhitespaceAddsLevels(t *testing.T) {
	t.Parallel()

	text := `                                     2022          2021
Operating expenses:
    Research and development        20            18
        Personnel                   12            10
Total operating expenses            20            18
`
	stmt, err := newParser().ParseText(incomeInput(), text)
	require.NoError(t, err)
	require.Len(t, stmt.LineItems, 3)
	assert.Equal(t, 2, stmt.LineItems[0].IndentLevel)
	assert.Equal(t, 3, stmt.LineItems[1].IndentLevel)
	assert.Equal(t, 0, stmt.LineItems[2].IndentLevel)
}

func TestParse_IndentCapped(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultParse()
	cfg.MaxIndent = 2
	p := New(cfg, terms.Default())

	text := "                              2022\n" +
		strings.Repeat(" ", 40) + "Deep item     5\n"
	stmt, err := p.ParseText(incomeInput(), text)
	require.NoError(t, err)
	require.Len(t, stmt.LineItems, 1)
	assert.Equal(t, 2, stmt.LineItems[0].IndentLevel)
}

func TestParse_MissingCellsAreNull(t *testing.T) {
	t.Parallel()

	text := `                        2022      2021      2020
Revenue                  300       200
Other income               -         5        (3)
`
	stmt, err := newParser().ParseText(incomeInput(), text)
	require.NoError(t, err)

	rev := stmt.LineItems[0]
	assert.Equal(t, []string{"2022", "2021", "2020"}, rev.Values.Keys())
	assert.False(t, value(t, rev, "2020").Valid)

	other := stmt.LineItems[1]
	assert.False(t, value(t, other, "2022").Valid)
	assert.True(t, value(t, other, "2020").Decimal.Equal(dec("-3")))
}

func TestParse_StructureMismatch(t *testing.T) {
	t.Parallel()

	text := `                        2022      2021
Revenue                  300       200       100
`
	_, err := newParser().ParseText(incomeInput(), text)
	var sm *StructureMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, "Revenue", sm.Account)
	assert.Equal(t, "column 4", sm.Period)
	assert.Equal(t, []string{"2022", "2021"}, sm.Periods)
}

func TestParse_EmptyStatement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"no rows", ""},
		{"no period header", "Revenue grew in every region.\nMargins held steady.\n"},
		{"no line items", "CONSOLIDATED STATEMENTS OF INCOME\n                 2022      2021\n(In thousands)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newParser().ParseText(incomeInput(), tt.text)
			var es *EmptyStatementError
			assert.ErrorAs(t, err, &es)
		})
	}
}

func TestParse_LenientAndStrictNumbers(t *testing.T) {
	t.Parallel()

	text := `                        2022      2021
Revenue                  n/a       200
`
	stmt, err := newParser().ParseText(incomeInput(), text)
	require.NoError(t, err)
	assert.False(t, value(t, stmt.LineItems[0], "2022").Valid)
	assert.True(t, value(t, stmt.LineItems[0], "2021").Decimal.Equal(dec("200")))

	cfg := config.DefaultParse()
	cfg.StrictNumbers = true
	_, err = New(cfg, terms.Default()).ParseText(incomeInput(), text)
	var fe *amount.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "n/a", fe.Token)
}

func TestParse_MarkdownWithCaptionRow(t *testing.T) {
	t.Parallel()

	text := `# Consolidated Statements of Operations

| | Year Ended January 30, | Year Ended January 31, |
| | 2022 | 2021 |
|---|---:|---:|
| Revenue | $ 26,914 | $ 16,675 |
| Cost of revenue | 9,439 | 6,279 |
| Gross profit | 17,475 | 10,396 |
`
	stmt, err := newParser().ParseText(incomeInput(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Year Ended January 30, 2022", "Year Ended January 31, 2021"}, stmt.Periods)
	assert.Equal(t, []int{2022, 2021}, stmt.FiscalYears)
	assert.Equal(t, "", stmt.CompanyName)
	require.Len(t, stmt.LineItems, 3)
	assert.True(t, stmt.LineItems[2].IsTotal)
	assert.True(t, value(t, stmt.LineItems[0], "Year Ended January 30, 2022").Decimal.Equal(dec("26914")))
}

func TestParse_DateLabelsInLayout(t *testing.T) {
	t.Parallel()

	text := `CONSOLIDATED BALANCE SHEETS
                       December 31, 2022    December 31, 2021
Cash                              1,000                  900
Total assets                      1,000                  900
`
	stmt, err := newParser().ParseText(Input{StatementType: model.StatementBalanceSheet}, text)
	require.NoError(t, err)
	assert.Equal(t, []string{"December 31, 2022", "December 31, 2021"}, stmt.Periods)
	require.Len(t, stmt.LineItems, 2)
}

func TestParse_EquityTextColumns(t *testing.T) {
	t.Parallel()

	text := `# Consolidated Statements of Stockholders' Equity

| | Common Stock | Retained Earnings | Total |
|---|---|---|---|
| Balance, December 31, 2021 | 1,000 | 2,000 | 3,000 |
| Net income | | 500 | 500 |
| Balance, December 31, 2022 | 1,000 | 2,500 | 3,500 |
`
	stmt, err := newParser().ParseText(Input{StatementType: model.StatementShareholdersEquity}, text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Common Stock", "Retained Earnings", "Total"}, stmt.Periods)
	assert.Empty(t, stmt.FiscalYears)
	require.Len(t, stmt.LineItems, 3)
	assert.False(t, value(t, stmt.LineItems[1], "Common Stock").Valid)
	assert.True(t, stmt.LineItems[1].IsTotal)
}

func TestParse_EquityRepeatedColumnLabels(t *testing.T) {
	t.Parallel()

	text := `# Consolidated Statements of Stockholders' Equity

| | Shares | Amount | Shares | Amount | Total |
|---|---|---|---|---|---|
| Balance, December 31, 2021 | 10 | 1,000 | 2 | (300) | 700 |
| Net income | | | | | 50 |
`
	stmt, err := newParser().ParseText(Input{StatementType: model.StatementShareholdersEquity}, text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shares", "Amount", "Shares (2)", "Amount (2)", "Total"}, stmt.Periods)

	bal := stmt.LineItems[0]
	assert.Equal(t, 5, bal.Values.Len())
	assert.True(t, value(t, bal, "Shares").Decimal.Equal(dec("10")))
	assert.True(t, value(t, bal, "Amount").Decimal.Equal(dec("1000")))
	assert.True(t, value(t, bal, "Shares (2)").Decimal.Equal(dec("2")))
	assert.True(t, value(t, bal, "Amount (2)").Decimal.Equal(dec("-300")))
	assert.True(t, value(t, bal, "Total").Decimal.Equal(dec("700")))
}

func TestParse_EquityCaptionQualifiesRepeatedLabels(t *testing.T) {
	t.Parallel()

	text := `# Consolidated Statements of Stockholders' Equity

| | Common | Common | Treasury | Treasury | Total |
| | Shares | Amount | Shares | Amount | Amount |
|---|---|---|---|---|---|
| Balance, December 31, 2021 | 10 | 1,000 | 2 | (300) | 700 |
`
	stmt, err := newParser().ParseText(Input{StatementType: model.StatementShareholdersEquity}, text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Common Shares", "Common Amount", "Treasury Shares", "Treasury Amount", "Total Amount"}, stmt.Periods)
	assert.True(t, value(t, stmt.LineItems[0], "Treasury Amount").Decimal.Equal(dec("-300")))
}

func TestUniqueLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"2022", "2021"}, uniqueLabels([]string{"2022", "2021"}))
	assert.Equal(t,
		[]string{"Amount", "Amount (2)", "Amount (2) (2)", "Amount (3)"},
		uniqueLabels([]string{"Amount", "Amount", "Amount (2)", "Amount"}),
	)
}

func TestParse_LayoutBlankCellKeepsColumn(t *testing.T) {
	t.Parallel()

	text := "CONSOLIDATED BALANCE SHEETS\n" +
		"                                     2022          2021\n" +
		"Cash                                  100            90\n" +
		"Goodwill                                             20\n" +
		"Total assets                          100           110\n"
	stmt, err := newParser().ParseText(Input{StatementType: model.StatementBalanceSheet}, text)
	require.NoError(t, err)
	require.Len(t, stmt.LineItems, 3)

	goodwill := stmt.LineItems[1]
	assert.Equal(t, "Goodwill", goodwill.AccountName)
	assert.False(t, value(t, goodwill, "2022").Valid)
	assert.True(t, value(t, goodwill, "2021").Decimal.Equal(dec("20")))
}

func TestParse_LayoutCellBetweenColumns(t *testing.T) {
	t.Parallel()

	text := "CONSOLIDATED BALANCE SHEETS\n" +
		"                                     2022          2021\n" +
		"Cash                                  100            90\n" +
		"Deposits                                     7\n"
	_, err := newParser().ParseText(Input{StatementType: model.StatementBalanceSheet}, text)
	var sm *StructureMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "Deposits", sm.Account)
	assert.Equal(t, "column 2", sm.Period)
}

func TestParse_MultiPageSkipsRepeatedHeader(t *testing.T) {
	t.Parallel()

	page1 := `CONSOLIDATED STATEMENTS OF CASH FLOWS
                                           2022        2021
Operating activities:
    Deferred income taxes                     6           5
    Depreciation                              5           4
`
	page2 := `CONSOLIDATED STATEMENTS OF CASH FLOWS (continued)
                                           2022        2021
    Stock-based compensation                  3           2
Net cash provided by operating activities    68          63
`
	stmt, err := newParser().ParseText(Input{StatementType: model.StatementCashFlow}, page1+"\f"+page2)
	require.NoError(t, err)

	var names []string
	for _, li := range stmt.LineItems {
		names = append(names, li.AccountName)
	}
	assert.Equal(t, []string{"Deferred income taxes", "Depreciation", "Stock-based compensation", "Net cash provided by operating activities"}, names)
	assert.Equal(t, "Operating activities", stmt.LineItems[2].Parent())
	assert.Equal(t, []string{"2022", "2021"}, stmt.Periods)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := NewClassifier(terms.Default())
	row := func(cells ...string) table.Row { return table.Row{Cells: cells} }

	tests := []struct {
		name string
		row  table.Row
		want RowKind
	}{
		{"section header", row("Current assets:"), Header},
		{"header with blank cells", row("Current assets:", "", ""), Header},
		{"data", row("Cash", "100", "90"), Data},
		{"data with null marker", row("Other", "-", "5"), Data},
		{"total prefix", row("Total current assets", "150", "130"), Total},
		{"total suffix", row("Assets, total", "150", "130"), Total},
		{"net row", row("Net income", "60", "57"), Total},
		{"label-less", row("", "2022", "2021"), Unrecognized},
		{"scale caption", row("(In thousands)"), Unrecognized},
		{"title", row("CONSOLIDATED STATEMENTS OF INCOME"), Unrecognized},
		{"text values", row("Balance", "Common Stock", "Total"), Unrecognized},
		{"total without values", row("Total"), Unrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Classify(tt.row))
		})
	}
	assert.Equal(t, "total", Total.String())
}

func TestStep_IsPure(t *testing.T) {
	t.Parallel()

	p := newParser()
	periods := Columns{Periods: []string{"2022"}}
	s0 := State{}

	s1, item, err := p.Step(s0, table.Row{Cells: []string{"Assets:"}}, Header, periods)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Empty(t, s0.Stack)
	assert.Equal(t, []string{"Assets"}, s1.Stack)

	s2, _, err := p.Step(s1, table.Row{Cells: []string{"Liabilities:"}}, Header, periods)
	require.NoError(t, err)
	assert.Equal(t, []string{"Assets"}, s1.Stack)
	assert.Equal(t, []string{"Assets", "Liabilities"}, s2.Stack)

	s3, item, err := p.Step(s2, table.Row{Cells: []string{"Total liabilities", "10"}}, Total, periods)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 1, item.IndentLevel)
	assert.Equal(t, "Liabilities", item.Parent())
	assert.Equal(t, []string{"Assets"}, s3.Stack)
	assert.Equal(t, 1, s3.NextIndex)
	assert.Equal(t, 0, s2.NextIndex)

	s4, item, err := p.Step(s3, table.Row{Cells: []string{"ignored"}}, Unrecognized, periods)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, s3, s4)
}
