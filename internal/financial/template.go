package financial

import "strings"

type categoryLayout struct {
	name  string
	items []string
}

type statementLayout struct {
	statement  Statement
	categories []categoryLayout
}

// Category names used by the ratio calculations.
const (
	CatCurrentAssets         = "Current Assets"
	CatNonCurrentAssets      = "Non-Current Assets"
	CatCurrentLiabilities    = "Current Liabilities"
	CatNonCurrentLiabilities = "Non-Current Liabilities"
	CatEquity                = "Equity"
	CatTotals                = "Totals"
	CatRevenue               = "Revenue"
	CatExpenses              = "Expenses"
	CatProfit                = "Profit"
	CatPerShare              = "Per Share Data"
	CatOperating             = "Operating Activities"
	CatInvesting             = "Investing Activities"
	CatFinancing             = "Financing Activities"
	CatCashSummary           = "Summary"
	CatLiquidity             = "Liquidity"
	CatSolvency              = "Solvency"
	CatProfitability         = "Profitability"
	CatEfficiency            = "Efficiency"
)

var layout = []statementLayout{
	{statement: BalanceSheet, categories: []categoryLayout{
		{name: CatCurrentAssets, items: []string{"Cash and Cash Equivalents", "Short-term Investments", "Accounts Receivable", "Inventory", "Prepaid Expenses", "Total Current Assets"}},
		{name: CatNonCurrentAssets, items: []string{"Property, Plant and Equipment", "Intangible Assets", "Goodwill", "Long-term Investments", "Total Non-Current Assets"}},
		{name: CatCurrentLiabilities, items: []string{"Accounts Payable", "Short-term Debt", "Accrued Liabilities", "Total Current Liabilities"}},
		{name: CatNonCurrentLiabilities, items: []string{"Long-term Debt", "Deferred Tax Liabilities", "Total Non-Current Liabilities"}},
		{name: CatEquity, items: []string{"Share Capital", "Retained Earnings", "Total Equity"}},
		{name: CatTotals, items: []string{"Total Assets", "Total Liabilities"}},
	}},
	{statement: IncomeStatement, categories: []categoryLayout{
		{name: CatRevenue, items: []string{"Total Revenue", "Cost of Goods Sold", "Gross Profit"}},
		{name: CatExpenses, items: []string{"Operating Expenses", "Selling, General and Administrative", "Research and Development", "Depreciation and Amortization", "Interest Expense", "Income Tax Expense"}},
		{name: CatProfit, items: []string{"Operating Income", "EBITDA", "Income Before Tax", "Net Income"}},
		{name: CatPerShare, items: []string{"Earnings Per Share", "Dividends Per Share"}},
	}},
	{statement: CashFlow, categories: []categoryLayout{
		{name: CatOperating, items: []string{"Net Cash from Operating Activities"}},
		{name: CatInvesting, items: []string{"Capital Expenditures", "Net Cash from Investing Activities"}},
		{name: CatFinancing, items: []string{"Dividends Paid", "Net Cash from Financing Activities"}},
		{name: CatCashSummary, items: []string{"Net Change in Cash", "Free Cash Flow"}},
	}},
	{statement: Ratios, categories: []categoryLayout{
		{name: CatLiquidity, items: []string{"Current Ratio", "Quick Ratio", "Cash Ratio"}},
		{name: CatSolvency, items: []string{"Debt-to-Equity", "Debt-to-Assets", "Interest Coverage"}},
		{name: CatProfitability, items: []string{"Gross Margin", "Operating Margin", "Net Profit Margin", "Return on Assets", "Return on Equity"}},
		{name: CatEfficiency, items: []string{"Asset Turnover", "Inventory Turnover", "Receivables Turnover"}},
	}},
}

// aliases maps alternative labels found in statements to template items.
var aliases = map[string]string{
	"cash and equivalents":                       "Cash and Cash Equivalents",
	"trade receivables":                          "Accounts Receivable",
	"trade and other receivables":                "Accounts Receivable",
	"inventories":                                "Inventory",
	"property and equipment":                     "Property, Plant and Equipment",
	"trade payables":                             "Accounts Payable",
	"trade and other payables":                   "Accounts Payable",
	"total shareholders' equity":                 "Total Equity",
	"total stockholders' equity":                 "Total Equity",
	"shareholders' equity":                       "Total Equity",
	"stockholders' equity":                       "Total Equity",
	"revenue":                                    "Total Revenue",
	"revenues":                                   "Total Revenue",
	"net sales":                                  "Total Revenue",
	"cost of sales":                              "Cost of Goods Sold",
	"cost of revenue":                            "Cost of Goods Sold",
	"operating profit":                           "Operating Income",
	"profit before tax":                          "Income Before Tax",
	"net profit":                                 "Net Income",
	"profit for the year":                        "Net Income",
	"basic earnings per share":                   "Earnings Per Share",
	"net cash provided by operating activities":  "Net Cash from Operating Activities",
	"net cash used in investing activities":      "Net Cash from Investing Activities",
	"net cash used in financing activities":      "Net Cash from Financing Activities",
	"purchase of property, plant and equipment":  "Capital Expenditures",
	"net increase in cash":                       "Net Change in Cash",
	"net increase in cash and cash equivalents":  "Net Change in Cash",
	"total liabilities and equity":               "",
	"total liabilities and shareholders' equity": "",
}

type itemRef struct {
	statement Statement
	category  string
	item      string
}

// labelIndex maps a lower-cased label (template item or alias) to its template
// position. Aliases mapped to "" are recognised but ignored.
func labelIndex() map[string]*itemRef {
	idx := make(map[string]*itemRef)
	canonical := make(map[string]*itemRef)
	for _, st := range layout {
		for _, cat := range st.categories {
			for _, item := range cat.items {
				ref := &itemRef{statement: st.statement, category: cat.name, item: item}
				canonical[item] = ref
				idx[strings.ToLower(item)] = ref
			}
		}
	}
	for alias, target := range aliases {
		if target == "" {
			idx[alias] = nil
			continue
		}
		if ref, ok := canonical[target]; ok {
			idx[alias] = ref
		}
	}
	return idx
}

// Items returns the template line items of a statement category in
// presentation order.
func Items(st Statement, category string) []string {
	for _, sl := range layout {
		if sl.statement != st {
			continue
		}
		for _, cat := range sl.categories {
			if cat.name == category {
				return append([]string(nil), cat.items...)
			}
		}
	}
	return nil
}

// Categories returns the category names of a statement in presentation order.
func Categories(st Statement) []string {
	for _, sl := range layout {
		if sl.statement != st {
			continue
		}
		out := make([]string, 0, len(sl.categories))
		for _, cat := range sl.categories {
			out = append(out, cat.name)
		}
		return out
	}
	return nil
}
