package output

import (
	"strings"

	"oxide/internal/core"
)

// TableGrid renders rows as an ASCII grid with a header and separator
// lines:
//
//	|-------------------------------|
//	| symbol | exchange | last_sale |
//	|-------------------------------|
//	| ABC    | AMEX     | 11.77     |
//	|-------------------------------|
func TableGrid(params []core.Parameter, rows []core.Row) []string {
	headers := make([]string, len(params))
	for i, p := range params {
		headers[i] = p.Name
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(headers))
		for c := range headers {
			text := ""
			if c < len(row.Values) {
				text = cellText(row.Values[c])
			}
			cells[r][c] = text
			if len(text) > widths[c] {
				widths[c] = len(text)
			}
		}
	}

	var lines []string
	separator := gridSeparator(widths)
	lines = append(lines, separator)
	lines = append(lines, gridLine(headers, widths))
	lines = append(lines, separator)
	for _, row := range cells {
		lines = append(lines, gridLine(row, widths))
	}
	if len(cells) > 0 {
		lines = append(lines, separator)
	}
	return lines
}

func gridLine(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for i, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		sb.WriteString(" |")
	}
	return sb.String()
}

func gridSeparator(widths []int) string {
	total := 1
	for _, w := range widths {
		total += w + 3
	}
	return "|" + strings.Repeat("-", total-2) + "|"
}
