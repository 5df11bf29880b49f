package core

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RowOverhead is the number of bytes before the first field slot: the row
// metadata byte plus the big-endian u64 row ID.
const RowOverhead = 1 + 8

// Row is an ordered sequence of values matching a table's column list.
type Row struct {
	ID     uint64
	Values []Value
}

// NewRow builds a row from its ID and values.
func NewRow(id uint64, values ...Value) Row {
	return Row{ID: id, Values: values}
}

// EmptyRow returns the synthetic row produced by decoding a cleared slot.
func EmptyRow(columns []Column) Row {
	values := make([]Value, len(columns))
	for i := range values {
		values[i] = Null
	}
	return Row{Values: values}
}

// RecordSize returns the fixed byte width of a record under the column
// list: the row overhead plus every column's inline slot.
func RecordSize(columns []Column) int {
	total := RowOverhead
	for _, c := range columns {
		total += c.MaxPhysicalSize()
	}
	return total
}

// Encode produces exactly RecordSize(columns) bytes in the record layout
// [row-meta | row-id | field*], zero-padding every short payload.
func (r Row) Encode(columns []Column) ([]byte, error) {
	buf := make([]byte, RecordSize(columns))
	buf[0] = AllocatedRow().Encode()
	binary.BigEndian.PutUint64(buf[1:], r.ID)
	for i, c := range columns {
		value := Value(Null)
		if i < len(r.Values) {
			value = r.Values[i]
		}
		meta := ActiveField()
		if value == nil || value.Kind() == KindNull || value.Kind() == KindUndefined {
			meta = FieldMetadata{}
			value = Null
		}
		cell, err := EncodeField(c.Type, value, meta)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		copy(buf[c.Offset:], cell)
	}
	return buf, nil
}

// DecodeRow reads a record under the column list. An empty or all-zero
// buffer decodes as a tombstoned empty row.
func DecodeRow(buf []byte, columns []Column) (Row, RowMetadata) {
	if len(buf) == 0 || allZero(buf) {
		return EmptyRow(columns), RowMetadata{}
	}
	meta := DecodeRowMetadata(buf[0])
	id := binary.BigEndian.Uint64(buf[1:])
	values := make([]Value, len(columns))
	for i, c := range columns {
		values[i] = DecodeFieldValue(c.Type, buf, c.Offset)
	}
	return Row{ID: id, Values: values}, meta
}

// DecodeRows decodes a sequence of record buffers, keeping allocated rows.
func DecodeRows(columns []Column, rowData [][]byte) []Row {
	var rows []Row
	for _, buf := range rowData {
		row, meta := DecodeRow(buf, columns)
		if meta.IsAllocated {
			rows = append(rows, row)
		}
	}
	return rows
}

// ValueByName returns the value under the named column, or Undefined.
func (r Row) ValueByName(columns []Column, name string) Value {
	if i := FindColumn(columns, name); i >= 0 && i < len(r.Values) {
		return r.Values[i]
	}
	return Undefined
}

// Transform returns a copy of the row with each named field replaced by the
// paired value; unnamed fields are left intact. An Undefined replacement is
// a no-op for that field.
func (r Row) Transform(columns []Column, fieldNames []string, fieldValues []Value) (Row, error) {
	if len(fieldNames) != len(fieldValues) {
		return Row{}, fmt.Errorf("field mismatch: names (%d) vs values (%d)", len(fieldNames), len(fieldValues))
	}
	replacements := make(map[string]Value, len(fieldNames))
	for i, name := range fieldNames {
		replacements[name] = fieldValues[i]
	}
	values := make([]Value, len(r.Values))
	copy(values, r.Values)
	for i, c := range columns {
		if i >= len(values) {
			break
		}
		if v, ok := replacements[c.Name]; ok && v.Kind() != KindUndefined {
			values[i] = v
		}
	}
	return Row{ID: r.ID, Values: values}, nil
}

// WithID returns a copy of the row under a new ID.
func (r Row) WithID(id uint64) Row {
	return Row{ID: id, Values: r.Values}
}

// String renders the row for diagnostics.
func (r Row) String() string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = v.ToCode()
	}
	return fmt.Sprintf("Row(%d){%s}", r.ID, strings.Join(parts, ", "))
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
