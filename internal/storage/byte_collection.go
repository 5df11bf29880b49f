package storage

import (
	"fmt"

	"oxide/internal/core"
)

// ByteRowCollection is the in-memory backing: a vector of record byte
// vectors with the same CRUD, metadata, field-level, and range semantics as
// the file backing, byte-for-byte.
type ByteRowCollection struct {
	columns    []core.Column
	rowData    [][]byte
	recordSize int
	watermark  int
	blobs      *BLOBStore
}

// NewByteRowCollection builds an empty in-memory collection for the schema.
func NewByteRowCollection(params []core.Parameter) *ByteRowCollection {
	columns := core.ColumnsFromParameters(params)
	return &ByteRowCollection{
		columns:    columns,
		recordSize: core.RecordSize(columns),
		blobs:      NewMemoryBLOBStore(),
	}
}

// FromRows builds an in-memory collection pre-loaded with rows.
func FromRows(params []core.Parameter, rows []core.Row) (*ByteRowCollection, error) {
	rc := NewByteRowCollection(params)
	for _, row := range rows {
		if _, err := rc.Overwrite(row.ID, row); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// DecodeByteRowCollection rebuilds a collection from its encoded form by
// slicing the buffer into record-size chunks.
func DecodeByteRowCollection(params []core.Parameter, encoded []byte) *ByteRowCollection {
	rc := NewByteRowCollection(params)
	for start := 0; start+rc.recordSize <= len(encoded); start += rc.recordSize {
		chunk := make([]byte, rc.recordSize)
		copy(chunk, encoded[start:start+rc.recordSize])
		rc.rowData = append(rc.rowData, chunk)
	}
	rc.watermark = len(rc.rowData)
	return rc
}

// Encode flattens the collection into one contiguous buffer of records.
func (rc *ByteRowCollection) Encode() []byte {
	out := make([]byte, 0, len(rc.rowData)*rc.recordSize)
	for _, row := range rc.rowData {
		if len(row) == 0 {
			row = make([]byte, rc.recordSize)
		}
		out = append(out, row...)
	}
	return out
}

func (rc *ByteRowCollection) Len() (int, error)      { return rc.watermark, nil }
func (rc *ByteRowCollection) Columns() []core.Column { return rc.columns }
func (rc *ByteRowCollection) RecordSize() int        { return rc.recordSize }

func (rc *ByteRowCollection) slot(id uint64) []byte {
	if id >= uint64(len(rc.rowData)) {
		return nil
	}
	return rc.rowData[id]
}

// ensureSlot grows the row vector so the slot for id exists.
func (rc *ByteRowCollection) ensureSlot(id uint64) []byte {
	for uint64(len(rc.rowData)) <= id {
		rc.rowData = append(rc.rowData, make([]byte, rc.recordSize))
	}
	if len(rc.rowData[id]) == 0 {
		rc.rowData[id] = make([]byte, rc.recordSize)
	}
	return rc.rowData[id]
}

func (rc *ByteRowCollection) Read(id uint64) (core.Row, core.RowMetadata, error) {
	return decodeRecord(rc.blobs, rc.columns, rc.slot(id))
}

func (rc *ByteRowCollection) ReadMetadata(id uint64) (core.RowMetadata, error) {
	buf := rc.slot(id)
	if len(buf) == 0 {
		return core.RowMetadata{}, nil
	}
	return core.DecodeRowMetadata(buf[0]), nil
}

func (rc *ByteRowCollection) ReadField(id uint64, columnID int) (core.Value, error) {
	if columnID < 0 || columnID >= len(rc.columns) {
		return nil, fmt.Errorf("column %d out of range", columnID)
	}
	buf := rc.slot(id)
	if len(buf) == 0 {
		return core.Null, nil
	}
	return decodeFieldCell(rc.blobs, rc.columns[columnID], buf, rc.columns[columnID].Offset)
}

func (rc *ByteRowCollection) ReadFieldMetadata(id uint64, columnID int) (core.FieldMetadata, error) {
	if columnID < 0 || columnID >= len(rc.columns) {
		return core.FieldMetadata{}, fmt.Errorf("column %d out of range", columnID)
	}
	buf := rc.slot(id)
	if len(buf) == 0 {
		return core.FieldMetadata{}, nil
	}
	return core.DecodeFieldMetadata(buf[rc.columns[columnID].Offset]), nil
}

func (rc *ByteRowCollection) ReadRange(from, to uint64) ([]core.Row, error) {
	var rows []core.Row
	for id := from; id < to && id < uint64(rc.watermark); id++ {
		row, meta, err := rc.Read(id)
		if err != nil {
			return nil, err
		}
		if meta.IsAllocated {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (rc *ByteRowCollection) Overwrite(id uint64, row core.Row) (int64, error) {
	encoded, err := encodeRecord(rc.blobs, rc.columns, id, row)
	if err != nil {
		return 0, err
	}
	rc.ensureSlot(id)
	rc.rowData[id] = encoded
	if rc.watermark <= int(id) {
		rc.watermark = int(id) + 1
	}
	return 1, nil
}

func (rc *ByteRowCollection) OverwriteMetadata(id uint64, meta core.RowMetadata) error {
	rc.ensureSlot(id)[0] = meta.Encode()
	return nil
}

func (rc *ByteRowCollection) OverwriteField(id uint64, columnID int, v core.Value) error {
	if columnID < 0 || columnID >= len(rc.columns) {
		return fmt.Errorf("column %d out of range", columnID)
	}
	column := rc.columns[columnID]
	cell, err := encodeFieldCell(rc.blobs, column, v)
	if err != nil {
		return err
	}
	buf := rc.ensureSlot(id)
	copy(buf[column.Offset:column.Offset+column.MaxPhysicalSize()], cell)
	return nil
}

func (rc *ByteRowCollection) OverwriteFieldMetadata(id uint64, columnID int, meta core.FieldMetadata) error {
	if columnID < 0 || columnID >= len(rc.columns) {
		return fmt.Errorf("column %d out of range", columnID)
	}
	rc.ensureSlot(id)[rc.columns[columnID].Offset] = meta.Encode()
	return nil
}

func (rc *ByteRowCollection) Resize(newLen int) error {
	if newLen < len(rc.rowData) {
		rc.rowData = rc.rowData[:newLen]
	}
	for len(rc.rowData) < newLen {
		rc.rowData = append(rc.rowData, make([]byte, rc.recordSize))
	}
	rc.watermark = newLen
	return nil
}

// CreateRelatedStructure returns a fresh in-memory sibling; the extension
// has no meaning without a directory, so only the schema carries over.
func (rc *ByteRowCollection) CreateRelatedStructure(params []core.Parameter, _ string) (RowCollection, error) {
	return NewByteRowCollection(params), nil
}
