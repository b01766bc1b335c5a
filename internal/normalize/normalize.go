// Package normalize reshapes classified table grids into tidy records.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/extract"
)

// headerRows is the number of leading rows joined into column headers.
// One additional row of header spillover is dropped before data begins.
const headerRows = 2

// dataStartRow is the first row index treated as statement data.
const dataStartRow = 3

// dedupSuffix matches the _N suffix appended to colliding column names.
var dedupSuffix = regexp.MustCompile(`_\d+$`)

// canonicalPeriods maps a recognized date substring in a column header
// to its canonical period label. This is a narrow, extend-as-needed
// rule, not a general date parser.
var canonicalPeriods = []struct {
	Substr string
	Label  string
}{
	{"June 30, 2025", "June 30, 2025 (unaudited)"},
	{"December 31, 2024", "December 31, 2024"},
}

// Records reshapes one classified grid into tidy records: one record per
// (line item, period column) pair with a non-missing value, enriched
// with the filing metadata, the statement type, and the parsed period.
func Records(grid [][]string, meta extract.Metadata, statementType string) []domain.TidyRecord {
	if len(grid) <= dataStartRow {
		return nil
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	if width < 2 {
		return nil
	}

	headers := buildHeaders(grid, width)
	headers = makeUnique(headers)

	data := grid[dataStartRow:]

	// Clean every non-"Line Item" cell up front so fully-missing
	// columns can be pruned before the melt.
	values := make([][]*float64, len(data))
	for i, row := range data {
		values[i] = make([]*float64, width)
		for j := 1; j < width; j++ {
			values[i][j] = CleanNumber(cellAt(row, j))
		}
	}

	kept := make([]int, 0, width-1)
	for j := 1; j < width; j++ {
		for i := range values {
			if values[i][j] != nil {
				kept = append(kept, j)
				break
			}
		}
	}

	var records []domain.TidyRecord
	for i, row := range data {
		lineItem := strings.TrimSpace(cellAt(row, 0))
		for _, j := range kept {
			v := values[i][j]
			if v == nil {
				continue
			}
			label := canonicalLabel(headers[j])
			period := extract.ParsePeriod(dedupSuffix.ReplaceAllString(label, ""))
			records = append(records, domain.TidyRecord{
				Ticker:        meta.Ticker,
				FilingDate:    meta.FilingDate,
				StatementType: statementType,
				LineItem:      lineItem,
				PeriodType:    period.Type,
				EndDate:       period.EndDate,
				FiscalYear:    period.FiscalYear,
				Audited:       period.Audited,
				Value:         v,
			})
		}
	}
	return records
}

// buildHeaders joins the first two rows into one header per column.
// Column 0 is always "Line Item".
func buildHeaders(grid [][]string, width int) []string {
	headers := make([]string, width)
	headers[0] = "Line Item"
	for j := 1; j < width; j++ {
		parts := make([]string, 0, headerRows)
		for r := 0; r < headerRows && r < len(grid); r++ {
			if cell := strings.TrimSpace(cellAt(grid[r], j)); cell != "" {
				parts = append(parts, cell)
			}
		}
		headers[j] = strings.Join(parts, " ")
	}
	return headers
}

// makeUnique suffixes colliding headers with _1, _2, ... in order of
// appearance so column names stay unique downstream.
func makeUnique(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			out[i] = h + "_" + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
			out[i] = h
		}
	}
	return out
}

// canonicalLabel renames headers containing a recognized date substring
// to the canonical period label.
func canonicalLabel(header string) string {
	for _, cp := range canonicalPeriods {
		if strings.Contains(header, cp.Substr) {
			return cp.Label
		}
	}
	return header
}

// CleanNumber parses a statement cell as a number. Thousands separators
// and currency symbols are stripped; parentheses denote a negative.
// Anything that still fails to parse is a missing value, not an error.
func CleanNumber(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func cellAt(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}
