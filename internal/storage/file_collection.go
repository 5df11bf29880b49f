package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"oxide/internal/core"
)

// FileRowCollection is the disk backing: fixed-width records in a .table
// file with oversize payloads in the sibling .blob store. All I/O is
// positional; the collection holds one shared descriptor per file.
type FileRowCollection struct {
	columns    []core.Column
	file       *os.File
	path       string
	recordSize int
	blobs      *BLOBStore
}

// CreateTable creates a new table under root: the record file is truncated,
// the BLOB store is opened fresh, and the schema config is persisted next
// to them.
func CreateTable(root string, ns Namespace, params []core.Parameter) (*FileRowCollection, error) {
	if err := os.MkdirAll(ns.Dir(root), 0o755); err != nil {
		return nil, fmt.Errorf("table: create dir: %w", err)
	}
	if err := BuildTableConfig(params).Save(ns.ConfigFilePath(root)); err != nil {
		return nil, err
	}
	path := ns.TableFilePath(root)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("table: create %q: %w", path, err)
	}
	if err := os.Remove(ns.BlobFilePath(root)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("table: reset blob store: %w", err)
	}
	return newFileRowCollection(params, file, path)
}

// OpenTable opens an existing table under root, reading its schema from the
// persisted config.
func OpenTable(root string, ns Namespace) (*FileRowCollection, error) {
	cfg, err := LoadObjectConfig(ns.ConfigFilePath(root))
	if err != nil {
		return nil, err
	}
	params, err := cfg.Parameters()
	if err != nil {
		return nil, err
	}
	path := ns.TableFilePath(root)
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("table: open %q: %w", path, err)
	}
	return newFileRowCollection(params, file, path)
}

// OpenOrCreateTable opens the table when it exists and creates it with the
// given schema otherwise.
func OpenOrCreateTable(root string, ns Namespace, params []core.Parameter) (*FileRowCollection, error) {
	if _, err := os.Stat(ns.ConfigFilePath(root)); errors.Is(err, fs.ErrNotExist) {
		return CreateTable(root, ns, params)
	}
	return OpenTable(root, ns)
}

// DropTable unlinks the record file, the BLOB store, and the config.
func DropTable(root string, ns Namespace) error {
	var firstErr error
	for _, path := range []string{
		ns.TableFilePath(root),
		ns.BlobFilePath(root),
		ns.ConfigFilePath(root),
	} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = fmt.Errorf("table: drop %q: %w", path, err)
		}
	}
	return firstErr
}

func newFileRowCollection(params []core.Parameter, file *os.File, path string) (*FileRowCollection, error) {
	blobs, err := OpenBLOBFile(path + ".blob")
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	columns := core.ColumnsFromParameters(params)
	return &FileRowCollection{
		columns:    columns,
		file:       file,
		path:       path,
		recordSize: core.RecordSize(columns),
		blobs:      blobs,
	}, nil
}

// Path returns the record file location.
func (rc *FileRowCollection) Path() string { return rc.path }

// Close releases both file handles.
func (rc *FileRowCollection) Close() error {
	blobErr := rc.blobs.Close()
	if err := rc.file.Close(); err != nil {
		return err
	}
	return blobErr
}

func (rc *FileRowCollection) Len() (int, error) {
	info, err := rc.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("table: stat: %w", err)
	}
	return int(info.Size() / int64(rc.recordSize)), nil
}

func (rc *FileRowCollection) Columns() []core.Column { return rc.columns }
func (rc *FileRowCollection) RecordSize() int        { return rc.recordSize }

func (rc *FileRowCollection) rowOffset(id uint64) int64 {
	return int64(id) * int64(rc.recordSize)
}

// readAt returns count bytes at offset; reads past the end of the file
// come back zero-filled so cleared and absent slots decode identically.
func (rc *FileRowCollection) readAt(offset int64, count int) ([]byte, error) {
	buf := make([]byte, count)
	if _, err := rc.file.ReadAt(buf, offset); err != nil && !isEOF(err) {
		return nil, fmt.Errorf("table: read at %d: %w", offset, err)
	}
	return buf, nil
}

func (rc *FileRowCollection) Read(id uint64) (core.Row, core.RowMetadata, error) {
	buf, err := rc.readAt(rc.rowOffset(id), rc.recordSize)
	if err != nil {
		return core.Row{}, core.RowMetadata{}, err
	}
	return decodeRecord(rc.blobs, rc.columns, buf)
}

func (rc *FileRowCollection) ReadMetadata(id uint64) (core.RowMetadata, error) {
	buf, err := rc.readAt(rc.rowOffset(id), 1)
	if err != nil {
		return core.RowMetadata{}, err
	}
	return core.DecodeRowMetadata(buf[0]), nil
}

func (rc *FileRowCollection) ReadField(id uint64, columnID int) (core.Value, error) {
	if columnID < 0 || columnID >= len(rc.columns) {
		return nil, fmt.Errorf("column %d out of range", columnID)
	}
	column := rc.columns[columnID]
	buf, err := rc.readAt(rc.rowOffset(id)+int64(column.Offset), column.MaxPhysicalSize())
	if err != nil {
		return nil, err
	}
	relocated := column
	relocated.Offset = 0
	return decodeFieldCell(rc.blobs, relocated, buf, 0)
}

func (rc *FileRowCollection) ReadFieldMetadata(id uint64, columnID int) (core.FieldMetadata, error) {
	if columnID < 0 || columnID >= len(rc.columns) {
		return core.FieldMetadata{}, fmt.Errorf("column %d out of range", columnID)
	}
	buf, err := rc.readAt(rc.rowOffset(id)+int64(rc.columns[columnID].Offset), 1)
	if err != nil {
		return core.FieldMetadata{}, err
	}
	return core.DecodeFieldMetadata(buf[0]), nil
}

func (rc *FileRowCollection) ReadRange(from, to uint64) ([]core.Row, error) {
	n, err := rc.Len()
	if err != nil {
		return nil, err
	}
	var rows []core.Row
	for id := from; id < to && id < uint64(n); id++ {
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

func (rc *FileRowCollection) Overwrite(id uint64, row core.Row) (int64, error) {
	encoded, err := encodeRecord(rc.blobs, rc.columns, id, row)
	if err != nil {
		return 0, err
	}
	if _, err := rc.file.WriteAt(encoded, rc.rowOffset(id)); err != nil {
		return 0, fmt.Errorf("table: write row %d: %w", id, err)
	}
	return 1, nil
}

func (rc *FileRowCollection) OverwriteMetadata(id uint64, meta core.RowMetadata) error {
	if _, err := rc.file.WriteAt([]byte{meta.Encode()}, rc.rowOffset(id)); err != nil {
		return fmt.Errorf("table: write row %d metadata: %w", id, err)
	}
	return nil
}

func (rc *FileRowCollection) OverwriteField(id uint64, columnID int, v core.Value) error {
	if columnID < 0 || columnID >= len(rc.columns) {
		return fmt.Errorf("column %d out of range", columnID)
	}
	column := rc.columns[columnID]
	cell, err := encodeFieldCell(rc.blobs, column, v)
	if err != nil {
		return err
	}
	if _, err := rc.file.WriteAt(cell, rc.rowOffset(id)+int64(column.Offset)); err != nil {
		return fmt.Errorf("table: write field (%d, %d): %w", id, columnID, err)
	}
	return nil
}

func (rc *FileRowCollection) OverwriteFieldMetadata(id uint64, columnID int, meta core.FieldMetadata) error {
	if columnID < 0 || columnID >= len(rc.columns) {
		return fmt.Errorf("column %d out of range", columnID)
	}
	offset := rc.rowOffset(id) + int64(rc.columns[columnID].Offset)
	if _, err := rc.file.WriteAt([]byte{meta.Encode()}, offset); err != nil {
		return fmt.Errorf("table: write field metadata (%d, %d): %w", id, columnID, err)
	}
	return nil
}

func (rc *FileRowCollection) Resize(newLen int) error {
	if err := rc.file.Truncate(int64(newLen) * int64(rc.recordSize)); err != nil {
		return fmt.Errorf("table: resize to %d rows: %w", newLen, err)
	}
	return nil
}

// CreateRelatedStructure opens a sibling collection sharing the table's
// directory and file stem, distinguished only by extension.
func (rc *FileRowCollection) CreateRelatedStructure(params []core.Parameter, extension string) (RowCollection, error) {
	dir := filepath.Dir(rc.path)
	stem := filepath.Base(rc.path)
	if n := strings.Index(stem, "."); n >= 0 {
		stem = stem[:n]
	}
	path := filepath.Join(dir, stem+"."+extension)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("table: create related %q: %w", path, err)
	}
	return newFileRowCollection(params, file, path)
}

// Compact rebuilds the record file and the BLOB store from the live rows,
// reassigning dense row IDs and dropping orphaned BLOB cells. Both files
// are replaced atomically before the collection reopens over them.
func (rc *FileRowCollection) Compact() error {
	rows, err := ReadActiveRows(rc)
	if err != nil {
		return err
	}

	pendingTable, err := renameio.TempFile(filepath.Dir(rc.path), rc.path)
	if err != nil {
		return fmt.Errorf("table: compact: %w", err)
	}
	defer pendingTable.Cleanup()
	pendingBlob, err := renameio.TempFile(filepath.Dir(rc.path), rc.path+".blob")
	if err != nil {
		return fmt.Errorf("table: compact blob: %w", err)
	}
	defer pendingBlob.Cleanup()

	blobs := &BLOBStore{backend: &memoryBackend{}}
	for i, row := range rows {
		encoded, err := encodeRecord(blobs, rc.columns, uint64(i), row.WithID(uint64(i)))
		if err != nil {
			return err
		}
		if _, err := pendingTable.Write(encoded); err != nil {
			return fmt.Errorf("table: compact write: %w", err)
		}
	}
	mem := blobs.backend.(*memoryBackend)
	if _, err := pendingBlob.Write(mem.data); err != nil {
		return fmt.Errorf("table: compact blob write: %w", err)
	}

	if err := pendingBlob.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("table: compact blob replace: %w", err)
	}
	if err := pendingTable.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("table: compact replace: %w", err)
	}

	file, err := os.OpenFile(rc.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("table: reopen after compact: %w", err)
	}
	blobStore, err := OpenBLOBFile(rc.path + ".blob")
	if err != nil {
		_ = file.Close()
		return err
	}
	_ = rc.file.Close()
	_ = rc.blobs.Close()
	rc.file = file
	rc.blobs = blobStore
	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
