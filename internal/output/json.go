package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"oxide/internal/core"
)

// JSONRows encodes each row as one JSON object line, preserving column
// order.
func JSONRows(params []core.Parameter, rows []core.Row) ([]string, error) {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line, err := jsonRow(params, row)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// jsonRow writes the object by hand to keep the declared column order;
// encoding/json map encoding would sort the keys.
func jsonRow(params []core.Parameter, row core.Row) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, p := range params {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return "", fmt.Errorf("output: encode key %q: %w", p.Name, err)
		}
		buf.Write(key)
		buf.WriteString(":")
		v := core.Value(core.Null)
		if i < len(row.Values) {
			v = row.Values[i]
		}
		cell, err := json.Marshal(jsonCell(v))
		if err != nil {
			return "", fmt.Errorf("output: encode %q: %w", p.Name, err)
		}
		buf.Write(cell)
	}
	buf.WriteString("}")
	return buf.String(), nil
}

func jsonCell(v core.Value) any {
	switch t := v.(type) {
	case nil, core.NullValue, core.UndefinedValue:
		return nil
	case core.BoolValue:
		return t.B
	case core.StringValue:
		return t.S
	case core.ASCIIValue:
		return t.S
	case core.NumberValue:
		switch {
		case t.N.Kind.IsFloat():
			return t.N.F
		case t.N.Kind == core.UUIDKind:
			return t.N.ID.String()
		case t.N.Kind.IsUnsigned():
			return t.N.U
		default:
			return t.N.I
		}
	case core.ArrayValue:
		items := make([]any, len(t.Items))
		for i, item := range t.Items {
			items[i] = jsonCell(item)
		}
		return items
	default:
		return v.ToCode()
	}
}
