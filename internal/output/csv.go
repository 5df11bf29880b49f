package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"oxide/internal/core"
)

// CSVRows encodes each row as one CSV line. String cells are quoted,
// numeric cells are bare, matching the export shape of util::to_csv.
func CSVRows(params []core.Parameter, rows []core.Row) ([]string, error) {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, len(params))
		for i := range params {
			v := core.Value(core.Null)
			if i < len(row.Values) {
				v = row.Values[i]
			}
			parts[i] = csvCell(v)
		}
		lines = append(lines, strings.Join(parts, ","))
	}
	return lines, nil
}

func csvCell(v core.Value) string {
	switch t := v.(type) {
	case core.StringValue:
		return quoteCSV(t.S)
	case core.ASCIIValue:
		return quoteCSV(t.S)
	default:
		return cellText(v)
	}
}

// quoteCSV quotes a string cell, delegating escaping to encoding/csv so
// embedded quotes and separators stay well-formed.
func quoteCSV(s string) string {
	if !strings.ContainsAny(s, `",`+"\n") {
		return fmt.Sprintf("%q", s)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{s})
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
