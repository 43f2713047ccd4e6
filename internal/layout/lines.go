package layout

import (
	"sort"
	"strings"
)

// reconstructRows sorts characters top-to-bottom, left-to-right and groups
// them into rows: a character joins the current row while its Y differs from
// the row's Y by less than the line tolerance. PDF Y grows upward, so
// top-to-bottom means descending Y.
func reconstructRows(chars []Char, tolerance float64) []TextRow {
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

	var rows []TextRow
	var current []Char
	currentY := sorted[0].Y

	flush := func() {
		if len(current) == 0 {
			return
		}
		sort.SliceStable(current, func(i, j int) bool { return current[i].X < current[j].X })
		var b strings.Builder
		for _, c := range current {
			b.WriteString(c.S)
		}
		text := strings.TrimSpace(b.String())
		if text != "" {
			last := current[len(current)-1]
			rows = append(rows, TextRow{
				Y:    currentY,
				X0:   current[0].X,
				X1:   last.X + last.W,
				Text: text,
			})
		}
		current = current[:0]
	}

	for _, c := range sorted {
		if abs(c.Y-currentY) >= tolerance {
			flush()
		}
		current = append(current, c)
		currentY = c.Y
	}
	flush()

	return rows
}

// rowsText joins reconstructed rows with newlines.
func rowsText(rows []TextRow) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = r.Text
	}
	return strings.Join(lines, "\n")
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
