package storage

import (
	"encoding/binary"
	"fmt"

	"oxide/internal/core"
)

// RowCollection is the uniform contract over fixed-width record stores.
// Records are keyed by dense, zero-based positional row IDs; a deleted row
// keeps its slot as a tombstone so neighboring IDs never shift.
type RowCollection interface {
	// Len returns the high-water mark: the next row ID to be assigned.
	Len() (int, error)
	// Columns returns the collection's schema. The slice is shared, not a
	// copy, and is stable for the collection's lifetime.
	Columns() []core.Column
	// RecordSize returns the fixed record width in bytes.
	RecordSize() int
	// Read decodes the record in the slot for id; a cleared slot decodes as
	// a tombstoned empty row.
	Read(id uint64) (core.Row, core.RowMetadata, error)
	// ReadMetadata reads only the record's metadata byte.
	ReadMetadata(id uint64) (core.RowMetadata, error)
	// ReadField decodes exactly one field slot.
	ReadField(id uint64, columnID int) (core.Value, error)
	// ReadFieldMetadata reads one field's metadata byte.
	ReadFieldMetadata(id uint64, columnID int) (core.FieldMetadata, error)
	// ReadRange returns the allocated rows in the half-open ID range.
	ReadRange(from, to uint64) ([]core.Row, error)
	// Overwrite writes a full record into the slot for id, extending the
	// high-water mark to id+1 when needed. It returns the affected count,
	// which is always 1 on success.
	Overwrite(id uint64, row core.Row) (int64, error)
	// OverwriteMetadata updates only the record's metadata byte.
	OverwriteMetadata(id uint64, meta core.RowMetadata) error
	// OverwriteField updates one field slot, delegating to the BLOB store
	// when the payload exceeds the inline budget of an unbounded column.
	OverwriteField(id uint64, columnID int, v core.Value) error
	// OverwriteFieldMetadata updates one field's metadata byte in place.
	OverwriteFieldMetadata(id uint64, columnID int, meta core.FieldMetadata) error
	// Resize sets the high-water mark, truncating or extending in place.
	Resize(newLen int) error
	// CreateRelatedStructure returns a sibling collection with the given
	// file extension in the same directory, sharing nothing but location.
	CreateRelatedStructure(params []core.Parameter, extension string) (RowCollection, error)
}

// Append writes row at the high-water mark and returns the assigned ID.
func Append(rc RowCollection, row core.Row) (uint64, error) {
	n, err := rc.Len()
	if err != nil {
		return 0, err
	}
	id := uint64(n)
	if _, err := rc.Overwrite(id, row.WithID(id)); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete tombstones the row by clearing its allocation bit. The record
// bytes are retained so Undelete can restore them.
func Delete(rc RowCollection, id uint64) error {
	return rc.OverwriteMetadata(id, core.RowMetadata{})
}

// Undelete restores a tombstoned row by setting its allocation bit.
func Undelete(rc RowCollection, id uint64) error {
	return rc.OverwriteMetadata(id, core.AllocatedRow())
}

// ReadActiveRows returns every allocated row in ID order.
func ReadActiveRows(rc RowCollection) ([]core.Row, error) {
	n, err := rc.Len()
	if err != nil {
		return nil, err
	}
	return rc.ReadRange(0, uint64(n))
}

// ToTableValue materializes the collection as an in-memory table value.
func ToTableValue(rc RowCollection) (core.TableValue, error) {
	rows, err := ReadActiveRows(rc)
	if err != nil {
		return core.TableValue{}, err
	}
	return core.TableValue{
		Params: core.ParametersFromColumns(rc.Columns()),
		Rows:   rows,
	}, nil
}

// encodeFieldCell produces one field slot for a column, spilling unbounded
// payloads into the BLOB store and stamping the slot with an external
// pointer. A bounded overflow is a typed error, never a silent truncation.
func encodeFieldCell(blobs *BLOBStore, column core.Column, v core.Value) ([]byte, error) {
	if v == nil || v.Kind() == core.KindNull || v.Kind() == core.KindUndefined {
		return core.EncodeField(column.Type, core.Null, core.FieldMetadata{})
	}
	if core.IsUnbounded(column.Type) {
		offset, err := blobs.AppendValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", column.Name, err)
		}
		cell := make([]byte, column.MaxPhysicalSize())
		cell[0] = core.ExternalField().Encode()
		binary.BigEndian.PutUint64(cell[1:], offset)
		return cell, nil
	}
	cell, err := core.EncodeField(column.Type, v, core.ActiveField())
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", column.Name, err)
	}
	return cell, nil
}

// encodeRecord encodes a full record through the BLOB-aware field encoder.
func encodeRecord(blobs *BLOBStore, columns []core.Column, id uint64, row core.Row) ([]byte, error) {
	buf := make([]byte, core.RecordSize(columns))
	buf[0] = core.AllocatedRow().Encode()
	binary.BigEndian.PutUint64(buf[1:], id)
	for i, column := range columns {
		value := core.Value(core.Null)
		if i < len(row.Values) {
			value = row.Values[i]
		}
		cell, err := encodeFieldCell(blobs, column, value)
		if err != nil {
			return nil, err
		}
		copy(buf[column.Offset:], cell)
	}
	return buf, nil
}

// decodeFieldCell decodes one field slot, following external pointers into
// the BLOB store.
func decodeFieldCell(blobs *BLOBStore, column core.Column, buf []byte, offset int) (core.Value, error) {
	if offset >= len(buf) {
		return core.Null, nil
	}
	meta := core.DecodeFieldMetadata(buf[offset])
	switch {
	case !meta.IsActive:
		return core.Null, nil
	case meta.IsExternal:
		if offset+1+8 > len(buf) {
			return nil, core.Exactf("field %q: truncated external pointer", column.Name)
		}
		cell := binary.BigEndian.Uint64(buf[offset+1:])
		return blobs.ReadValue(cell)
	default:
		return column.Type.Decode(buf, offset+1), nil
	}
}

// decodeRecord decodes a full record through the BLOB-aware field decoder.
func decodeRecord(blobs *BLOBStore, columns []core.Column, buf []byte) (core.Row, core.RowMetadata, error) {
	if len(buf) == 0 || bufAllZero(buf) {
		return core.EmptyRow(columns), core.RowMetadata{}, nil
	}
	meta := core.DecodeRowMetadata(buf[0])
	id := binary.BigEndian.Uint64(buf[1:])
	values := make([]core.Value, len(columns))
	for i, column := range columns {
		v, err := decodeFieldCell(blobs, column, buf, column.Offset)
		if err != nil {
			return core.Row{}, meta, err
		}
		values[i] = v
	}
	return core.Row{ID: id, Values: values}, meta, nil
}

func bufAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
