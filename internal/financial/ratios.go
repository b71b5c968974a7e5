package financial

// computeRatios fills unset ratio items from the year's statement values.
// Ratios reported in the document itself are kept as-is.
func computeRatios(y Year) {
	bs := func(cat, item string) (float64, bool) { return y.Value(BalanceSheet, cat, item) }
	is := func(cat, item string) (float64, bool) { return y.Value(IncomeStatement, cat, item) }

	currentAssets, okCA := totalOrSum(y, CatCurrentAssets, "Total Current Assets")
	currentLiabs, okCL := totalOrSum(y, CatCurrentLiabilities, "Total Current Liabilities")
	nonCurrentAssets, okNCA := totalOrSum(y, CatNonCurrentAssets, "Total Non-Current Assets")
	nonCurrentLiabs, okNCL := totalOrSum(y, CatNonCurrentLiabilities, "Total Non-Current Liabilities")

	totalAssets, okTA := bs(CatTotals, "Total Assets")
	if !okTA && okCA && okNCA {
		totalAssets, okTA = currentAssets+nonCurrentAssets, true
	}
	totalLiabs, okTL := bs(CatTotals, "Total Liabilities")
	if !okTL && okCL && okNCL {
		totalLiabs, okTL = currentLiabs+nonCurrentLiabs, true
	}
	equity, okEq := bs(CatEquity, "Total Equity")
	cash, okCash := bs(CatCurrentAssets, "Cash and Cash Equivalents")
	inventory, okInv := bs(CatCurrentAssets, "Inventory")
	receivables, okAR := bs(CatCurrentAssets, "Accounts Receivable")

	revenue, okRev := is(CatRevenue, "Total Revenue")
	cogs, okCOGS := is(CatRevenue, "Cost of Goods Sold")
	grossProfit, okGP := is(CatRevenue, "Gross Profit")
	if !okGP && okRev && okCOGS {
		grossProfit, okGP = revenue-cogs, true
	}
	operatingIncome, okOI := is(CatProfit, "Operating Income")
	netIncome, okNI := is(CatProfit, "Net Income")
	interest, okInt := is(CatExpenses, "Interest Expense")

	set := func(cat, item string, ok bool, num, den float64, scale float64) {
		if !ok || den == 0 {
			return
		}
		if _, exists := y.Value(Ratios, cat, item); exists {
			return
		}
		y.Set(Ratios, cat, item, round2(num/den*scale))
	}

	quickAssets := currentAssets
	if okInv {
		quickAssets -= inventory
	}
	if interest < 0 {
		interest = -interest
	}

	set(CatLiquidity, "Current Ratio", okCA && okCL, currentAssets, currentLiabs, 1)
	set(CatLiquidity, "Quick Ratio", okCA && okCL, quickAssets, currentLiabs, 1)
	set(CatLiquidity, "Cash Ratio", okCash && okCL, cash, currentLiabs, 1)

	set(CatSolvency, "Debt-to-Equity", okTL && okEq, totalLiabs, equity, 1)
	set(CatSolvency, "Debt-to-Assets", okTL && okTA, totalLiabs, totalAssets, 1)
	set(CatSolvency, "Interest Coverage", okOI && okInt, operatingIncome, interest, 1)

	set(CatProfitability, "Gross Margin", okGP && okRev, grossProfit, revenue, 100)
	set(CatProfitability, "Operating Margin", okOI && okRev, operatingIncome, revenue, 100)
	set(CatProfitability, "Net Profit Margin", okNI && okRev, netIncome, revenue, 100)
	set(CatProfitability, "Return on Assets", okNI && okTA, netIncome, totalAssets, 100)
	set(CatProfitability, "Return on Equity", okNI && okEq, netIncome, equity, 100)

	set(CatEfficiency, "Asset Turnover", okRev && okTA, revenue, totalAssets, 1)
	set(CatEfficiency, "Inventory Turnover", okCOGS && okInv, cogs, inventory, 1)
	set(CatEfficiency, "Receivables Turnover", okRev && okAR, revenue, receivables, 1)
}

// totalOrSum returns the category's reported total, or the sum of its
// individual items when no total was reported.
func totalOrSum(y Year, category, totalItem string) (float64, bool) {
	if v, ok := y.Value(BalanceSheet, category, totalItem); ok {
		return v, true
	}
	var sum float64
	found := false
	for item, v := range y[BalanceSheet][category] {
		if item == totalItem || v == nil {
			continue
		}
		sum += *v
		found = true
	}
	return sum, found
}
