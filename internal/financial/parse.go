package financial

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxYears is the number of most recent fiscal years kept by Parse.
const MaxYears = 3

// yearWindow bounds how far (in characters) a line item may sit from a year
// mention when values cannot be assigned by column.
const yearWindow = 5000

var (
	ErrNoYears  = errors.New("no fiscal years found in text")
	ErrNoValues = errors.New("no recognised line items found in text")
)

var (
	yearPattern   = regexp.MustCompile(`\b(20\d{2})\b`)
	numberPattern = regexp.MustCompile(`\(?-?\$?\d[\d,]*(?:\.\d+)?\)?%?`)
)

type label struct {
	text    string
	pattern *regexp.Regexp
	ref     *itemRef
}

var labels = buildLabels()

func buildLabels() []label {
	idx := labelIndex()
	out := make([]label, 0, len(idx))
	for text, ref := range idx {
		out = append(out, label{
			text:    text,
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(text) + `\b`),
			ref:     ref,
		})
	}
	// Longest label first so "total current assets" wins over "current assets".
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].text) != len(out[j].text) {
			return len(out[i].text) > len(out[j].text)
		}
		return out[i].text < out[j].text
	})
	return out
}

type yearMention struct {
	year   int
	offset int
}

// Parse extracts categorized line items for the most recent fiscal years found
// in statement text, then derives ratios from them.
//
// Values on a line are assigned by column when the text carries a header line
// naming two or more years; otherwise a line's first number is assigned to the
// closest year mention within yearWindow characters.
func Parse(text string) (Data, error) {
	mentions, allYears := findYears(text)
	kept := keepRecent(allYears, MaxYears)
	if len(kept) == 0 {
		return nil, ErrNoYears
	}

	data := make(Data, len(kept))
	for _, year := range kept {
		data[year] = NewYear()
	}
	columns := detectColumns(text, data)

	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineStart := offset
		offset += len(line) + 1

		ref, rest, ok := matchLabel(line)
		if !ok {
			continue
		}
		nums := parseNumbers(rest, allYears)
		if len(nums) == 0 {
			continue
		}
		if len(columns) >= 2 && len(nums) >= len(columns) {
			for i, year := range columns {
				if y, ok := data[year]; ok {
					setIfEmpty(y, ref, nums[i])
				}
			}
			continue
		}
		if year, ok := nearestYear(mentions, lineStart, data); ok {
			setIfEmpty(data[year], ref, nums[0])
		}
	}

	for _, y := range data {
		computeRatios(y)
	}
	if !data.HasValues() {
		return nil, ErrNoValues
	}
	return data, nil
}

func findYears(text string) ([]yearMention, map[int]bool) {
	matches := yearPattern.FindAllStringSubmatchIndex(text, -1)
	mentions := make([]yearMention, 0, len(matches))
	all := make(map[int]bool)
	for _, m := range matches {
		year, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		mentions = append(mentions, yearMention{year: year, offset: m[0]})
		all[year] = true
	}
	return mentions, all
}

func keepRecent(all map[int]bool, n int) []int {
	years := make([]int, 0, len(all))
	for y := range all {
		years = append(years, y)
	}
	sort.Ints(years)
	if len(years) > n {
		years = years[len(years)-n:]
	}
	return years
}

// detectColumns returns the year order of the first line that names at least
// two kept years and carries no recognised line item.
func detectColumns(text string, kept Data) []int {
	for _, line := range strings.Split(text, "\n") {
		if _, _, ok := matchLabel(line); ok {
			continue
		}
		var order []int
		seen := make(map[int]bool)
		keptCount := 0
		for _, m := range yearPattern.FindAllString(line, -1) {
			year, _ := strconv.Atoi(m)
			if seen[year] {
				continue
			}
			seen[year] = true
			order = append(order, year)
			if _, ok := kept[year]; ok {
				keptCount++
			}
		}
		if keptCount >= 2 {
			return order
		}
	}
	return nil
}

func matchLabel(line string) (*itemRef, string, bool) {
	for _, l := range labels {
		loc := l.pattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if l.ref == nil {
			return nil, "", false
		}
		return l.ref, line[loc[1]:], true
	}
	return nil, "", false
}

func parseNumbers(rest string, years map[int]bool) []float64 {
	var out []float64
	for _, tok := range numberPattern.FindAllString(rest, -1) {
		negative := strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")")
		clean := strings.NewReplacer("(", "", ")", "", "$", "", ",", "", "%", "").Replace(tok)
		if strings.HasPrefix(clean, "-") {
			negative = true
			clean = strings.TrimPrefix(clean, "-")
		}
		if clean == "" {
			continue
		}
		v, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			continue
		}
		if len(clean) == 4 && !strings.ContainsAny(tok, ",.") && years[int(v)] {
			continue
		}
		if negative {
			v = -v
		}
		out = append(out, v)
	}
	return out
}

func nearestYear(mentions []yearMention, pos int, kept Data) (int, bool) {
	best, bestDist := 0, yearWindow+1
	for _, m := range mentions {
		if _, ok := kept[m.year]; !ok {
			continue
		}
		dist := pos - m.offset
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			best, bestDist = m.year, dist
		}
	}
	return best, bestDist <= yearWindow
}

func setIfEmpty(y Year, ref *itemRef, v float64) {
	if _, ok := y.Value(ref.statement, ref.category, ref.item); ok {
		return
	}
	y.Set(ref.statement, ref.category, ref.item, v)
}
