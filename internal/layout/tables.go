package layout

import (
	"sort"
	"strings"
)

// cell is a run of characters separated from its neighbors by a column gap.
type cell struct {
	X0, X1 float64
	Text   string
}

// splitCells breaks one row of characters into cells. A new cell starts when
// the horizontal gap to the previous character exceeds the column gap, which
// is an order of magnitude above ordinary word spacing.
func splitCells(chars []Char, columnGap float64) []cell {
	if len(chars) == 0 {
		return nil
	}
	sorted := make([]Char, len(chars))
	copy(sorted, chars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []cell
	var b strings.Builder
	x0 := sorted[0].X
	prevEnd := sorted[0].X

	flush := func(end float64) {
		text := strings.TrimSpace(b.String())
		if text != "" {
			cells = append(cells, cell{X0: x0, X1: end, Text: text})
		}
		b.Reset()
	}

	for i, c := range sorted {
		if i > 0 && c.X-prevEnd > columnGap {
			flush(prevEnd)
			x0 = c.X
		}
		b.WriteString(c.S)
		end := c.X + c.W
		if end > prevEnd {
			prevEnd = end
		}
	}
	flush(prevEnd)
	return cells
}

// detectTables finds straight-grid tables: runs of at least two consecutive
// rows with the same column count (two or more) whose column edges align
// within the join tolerance. Rows are clustered with the snap tolerance.
func detectTables(chars []Char, snap, join float64) []Table {
	rowGroups := groupByRow(chars, snap)
	columnGap := 10 * snap

	type tableRow struct {
		cells []cell
	}
	var candidate []tableRow
	var tables []Table

	flush := func() {
		if len(candidate) >= 2 {
			cols := len(candidate[0].cells)
			cells := make([][]string, len(candidate))
			for i, r := range candidate {
				cells[i] = make([]string, cols)
				for j, c := range r.cells {
					cells[i][j] = c.Text
				}
			}
			tables = append(tables, Table{Rows: len(candidate), Cols: cols, Cells: cells})
		}
		candidate = nil
	}

	for _, row := range rowGroups {
		cells := splitCells(row, columnGap)
		if len(cells) < 2 {
			flush()
			continue
		}
		if len(candidate) > 0 {
			prev := candidate[len(candidate)-1].cells
			if len(prev) != len(cells) || !columnsAligned(prev, cells, join) {
				flush()
			}
		}
		candidate = append(candidate, tableRow{cells: cells})
	}
	flush()

	return tables
}

// columnsAligned reports whether two rows' column left edges line up within
// the join tolerance.
func columnsAligned(a, b []cell, join float64) bool {
	for i := range a {
		if abs(a[i].X0-b[i].X0) > join {
			return false
		}
	}
	return true
}

// groupByRow clusters characters into rows by Y with the given tolerance,
// ordered top to bottom.
func groupByRow(chars []Char, tolerance float64) [][]Char {
	if len(chars) == 0 {
		return nil
	}
	sorted := make([]Char, len(chars))
	copy(sorted, chars)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var groups [][]Char
	var current []Char
	currentY := sorted[0].Y
	for _, c := range sorted {
		if abs(c.Y-currentY) >= tolerance && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, c)
		currentY = c.Y
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
