// Package htmltable extracts rendered HTML tables as text grids.
package htmltable

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Grid is one table as rows of cell text. Rows are padded to a uniform
// width; colspan/rowspan cells occupy their full footprint with the
// spanned slots left blank.
type Grid [][]string

// Extract parses an HTML document and returns one grid per <table>
// element. A table that cannot be converted is skipped with a warning;
// sibling tables are still returned.
func Extract(html string) ([]Grid, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var grids []Grid
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		grid := tableToGrid(table)
		if grid == nil {
			slog.Warn("skipped unparseable table", "index", i)
			return
		}
		grids = append(grids, grid)
	})

	slog.Info("extracted tables from document", "total", len(grids))
	return grids, nil
}

// tableToGrid builds a virtual grid from a table selection, expanding
// colspan and rowspan so columns stay aligned. Returns nil for tables
// with no rows or no cells.
func tableToGrid(table *goquery.Selection) Grid {
	rows := table.Find("tr")
	rowCount := rows.Length()
	if rowCount == 0 {
		return nil
	}

	// Pre-scan to size the grid width.
	maxCols := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		cols := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cols += spanAttr(cell, "colspan")
		})
		if cols > maxCols {
			maxCols = cols
		}
	})
	if maxCols == 0 {
		return nil
	}

	grid := make(Grid, rowCount)
	taken := make([][]bool, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
		taken[i] = make([]bool, maxCols)
	}

	rowIdx := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		colIdx := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			// Skip slots claimed by rowspans from rows above.
			for colIdx < maxCols && taken[rowIdx][colIdx] {
				colIdx++
			}
			if colIdx >= maxCols {
				return
			}

			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			text := cleanCellText(cell.Text())

			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					rr, cc := rowIdx+r, colIdx+c
					if rr >= rowCount || cc >= maxCols {
						continue
					}
					taken[rr][cc] = true
					if r == 0 && c == 0 {
						grid[rr][cc] = text
					}
				}
			}
			colIdx += colspan
		})
		rowIdx++
	})

	return grid
}

func spanAttr(cell *goquery.Selection, name string) int {
	n, err := strconv.Atoi(cell.AttrOr(name, "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// cleanCellText collapses whitespace runs, including non-breaking
// spaces, into single spaces.
func cleanCellText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
