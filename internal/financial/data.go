// Package financial holds the year-by-year statement model extracted from
// financial-statement PDFs and the text parser that populates it.
package financial

import (
	"math"
	"sort"
)

// Statement identifies one of the financial statements tracked per year.
type Statement string

const (
	BalanceSheet    Statement = "balance_sheet"
	IncomeStatement Statement = "income_statement"
	CashFlow        Statement = "cash_flow"
	Ratios          Statement = "ratios"
)

// Statements lists the statements in presentation order.
var Statements = []Statement{BalanceSheet, IncomeStatement, CashFlow, Ratios}

// Title returns a human readable statement name.
func (s Statement) Title() string {
	switch s {
	case BalanceSheet:
		return "Balance Sheet"
	case IncomeStatement:
		return "Income Statement"
	case CashFlow:
		return "Cash Flow Statement"
	case Ratios:
		return "Financial Ratios"
	default:
		return string(s)
	}
}

// LineItems maps a line item label to its value. A nil value means the item
// was not found in the source document.
type LineItems map[string]*float64

// Section groups line items by category, e.g. "Current Assets".
type Section map[string]LineItems

// Year holds every statement for one fiscal year.
type Year map[Statement]Section

// Data maps a fiscal year to its statements.
type Data map[int]Year

// NewYear returns a Year with every template line item present and unset.
func NewYear() Year {
	y := make(Year, len(Statements))
	for _, st := range layout {
		sec := make(Section, len(st.categories))
		for _, cat := range st.categories {
			items := make(LineItems, len(cat.items))
			for _, item := range cat.items {
				items[item] = nil
			}
			sec[cat.name] = items
		}
		y[st.statement] = sec
	}
	return y
}

// Years returns the fiscal years present, oldest first.
func (d Data) Years() []int {
	out := make([]int, 0, len(d))
	for year := range d {
		out = append(out, year)
	}
	sort.Ints(out)
	return out
}

// Latest returns the most recent year and its statements.
func (d Data) Latest() (int, Year, bool) {
	years := d.Years()
	if len(years) == 0 {
		return 0, nil, false
	}
	latest := years[len(years)-1]
	return latest, d[latest], true
}

// HasValues reports whether any line item in any year is set.
func (d Data) HasValues() bool {
	for _, y := range d {
		if y.HasValues() {
			return true
		}
	}
	return false
}

// Set stores a value, creating the year from the template if needed.
func (d Data) Set(year int, st Statement, category, item string, value float64) {
	y, ok := d[year]
	if !ok {
		y = NewYear()
		d[year] = y
	}
	y.Set(st, category, item, value)
}

// Value looks up a single line item.
func (d Data) Value(year int, st Statement, category, item string) (float64, bool) {
	y, ok := d[year]
	if !ok {
		return 0, false
	}
	return y.Value(st, category, item)
}

// HasValues reports whether any line item of the year is set.
func (y Year) HasValues() bool {
	for _, sec := range y {
		for _, items := range sec {
			for _, v := range items {
				if v != nil {
					return true
				}
			}
		}
	}
	return false
}

// Set stores a value for a line item.
func (y Year) Set(st Statement, category, item string, value float64) {
	sec, ok := y[st]
	if !ok {
		sec = Section{}
		y[st] = sec
	}
	items, ok := sec[category]
	if !ok {
		items = LineItems{}
		sec[category] = items
	}
	v := value
	items[item] = &v
}

// Value returns a line item value if it is set.
func (y Year) Value(st Statement, category, item string) (float64, bool) {
	v := y[st][category][item]
	if v == nil {
		return 0, false
	}
	return *v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clone returns a deep copy of the data.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for year, y := range d {
		cy := make(Year, len(y))
		for st, sec := range y {
			cs := make(Section, len(sec))
			for cat, items := range sec {
				ci := make(LineItems, len(items))
				for item, v := range items {
					if v != nil {
						val := *v
						ci[item] = &val
					} else {
						ci[item] = nil
					}
				}
				cs[cat] = ci
			}
			cy[st] = cs
		}
		out[year] = cy
	}
	return out
}
