package llm

import (
	_ "embed"
	"strconv"
	"strings"

	"creditmemo-backend/internal/financial"
)

// MaxDocumentChars bounds the document excerpt included in a memo prompt.
const MaxDocumentChars = 8000

//go:embed prompts/credit_memo.txt
var memoInstructions string

// summary lists the statement totals included for the latest year.
var summary = []struct {
	statement financial.Statement
	heading   string
	items     [][2]string
}{
	{financial.BalanceSheet, "Balance Sheet Summary", [][2]string{
		{financial.CatCurrentAssets, "Total Current Assets"},
		{financial.CatNonCurrentAssets, "Total Non-Current Assets"},
		{financial.CatCurrentLiabilities, "Total Current Liabilities"},
		{financial.CatNonCurrentLiabilities, "Total Non-Current Liabilities"},
		{financial.CatEquity, "Total Equity"},
	}},
	{financial.IncomeStatement, "Income Statement Summary", [][2]string{
		{financial.CatRevenue, "Total Revenue"},
		{financial.CatProfit, "EBITDA"},
		{financial.CatProfit, "Net Income"},
	}},
	{financial.CashFlow, "Cash Flow Summary", [][2]string{
		{financial.CatOperating, "Net Cash from Operating Activities"},
		{financial.CatInvesting, "Net Cash from Investing Activities"},
		{financial.CatFinancing, "Net Cash from Financing Activities"},
	}},
}

var promptRatioCategories = []string{financial.CatLiquidity, financial.CatSolvency, financial.CatProfitability}

// BuildMemoPrompt renders the credit memo prompt for the input.
func BuildMemoPrompt(in MemoInput) string {
	var b strings.Builder
	b.WriteString("You are a professional financial analyst tasked with creating a credit memo based on the following financial document.\n\n")
	if name := strings.TrimSpace(in.CompanyName); name != "" {
		b.WriteString("COMPANY: ")
		b.WriteString(name)
		b.WriteString("\n\n")
	}

	b.WriteString("DOCUMENT:\n")
	b.WriteString(truncateRunes(in.DocumentText, MaxDocumentChars))
	b.WriteString("\n")

	writeFinancials(&b, in.Financials)

	if method := strings.TrimSpace(in.Methodology); method != "" {
		b.WriteString("\nCREDIT ANALYSIS METHODOLOGY:\n")
		b.WriteString(method)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(memoInstructions))
	b.WriteString("\n")
	return b.String()
}

func writeFinancials(b *strings.Builder, data financial.Data) {
	latest, year, ok := data.Latest()
	if !ok {
		return
	}
	years := data.Years()
	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
	}

	b.WriteString("\nEXTRACTED FINANCIAL DATA:\n")
	b.WriteString("Years: " + strings.Join(labels, ", ") + "\n\n")
	b.WriteString("Data for " + strconv.Itoa(latest) + ":\n")

	for _, sec := range summary {
		var lines []string
		for _, it := range sec.items {
			if v, ok := year.Value(sec.statement, it[0], it[1]); ok {
				lines = append(lines, "- "+it[1]+": "+formatNumber(v))
			}
		}
		writeSection(b, sec.heading, lines)
	}

	var ratios []string
	for _, cat := range promptRatioCategories {
		for _, item := range financial.Items(financial.Ratios, cat) {
			if v, ok := year.Value(financial.Ratios, cat, item); ok {
				ratios = append(ratios, "- "+item+": "+formatNumber(v))
			}
		}
	}
	writeSection(b, "Key Financial Ratios", ratios)
}

func writeSection(b *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(heading + ":\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	b.WriteString("\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
