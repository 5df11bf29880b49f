// Package output renders evaluation results for the REPL and the export
// platform ops: an ASCII grid for tables, plus CSV and JSON row encoders.
package output

import (
	"fmt"

	"oxide/internal/core"
)

// Format identifies an export encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// FormatRows renders a row set in the requested format.
func FormatRows(format Format, params []core.Parameter, rows []core.Row) ([]string, error) {
	switch format {
	case FormatTable, "":
		return TableGrid(params, rows), nil
	case FormatCSV:
		return CSVRows(params, rows)
	case FormatJSON:
		return JSONRows(params, rows)
	default:
		return nil, fmt.Errorf("output: unsupported format %q", format)
	}
}

// RenderValue renders any value for display: tables become grids,
// everything else its literal form.
func RenderValue(v core.Value) []string {
	switch t := v.(type) {
	case core.TableValue:
		return TableGrid(t.Params, t.Rows)
	case core.ErrorValue:
		return []string{"error: " + t.Err.Error()}
	case core.NumberValue:
		if t.N.Kind == core.AckKind {
			return []string{"ack"}
		}
		return []string{t.N.String()}
	case core.StringValue:
		return []string{t.S}
	default:
		return []string{v.ToCode()}
	}
}

// cellText renders one value for a grid or CSV cell.
func cellText(v core.Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case core.NullValue:
		return "null"
	case core.UndefinedValue:
		return "undefined"
	case core.StringValue:
		return t.S
	case core.ASCIIValue:
		return t.S
	case core.NumberValue:
		if t.N.Kind == core.AckKind {
			return "ack"
		}
		return t.N.String()
	case core.BoolValue:
		if t.B {
			return "true"
		}
		return "false"
	default:
		return v.ToCode()
	}
}
