// Package storage implements the engine's row collections: a uniform
// positional CRUD contract over fixed-width records, backed either by
// in-memory byte vectors or by files on disk, with an append-only BLOB
// side-store for payloads that exceed their inline budget.
package storage

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"os"

	"oxide/internal/core"
)

// blobHeaderLen is the fixed cell header: payload length (u64), kind (u8),
// and checksum (u64).
const blobHeaderLen = 8 + 1 + 8

// BLOBCellMetadata is the decoded header of one BLOB cell.
type BLOBCellMetadata struct {
	Length   uint64
	Kind     byte
	Checksum uint64
}

// blobBackend abstracts the byte container under a BLOB store so the
// in-memory and file-backed collections share one cell format.
type blobBackend interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
	Close() error
}

// BLOBStore is an append-only store of variable-length cells addressed by
// their starting offset. Cells are never rewritten; orphaned cells leak
// space until a compact rebuilds the store.
type BLOBStore struct {
	backend blobBackend
}

// OpenBLOBFile opens (creating if needed) the BLOB store at path.
func OpenBLOBFile(path string) (*BLOBStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blob: open %q: %w", path, err)
	}
	return &BLOBStore{backend: fileBackend{f}}, nil
}

// NewMemoryBLOBStore returns a store over an in-memory buffer.
func NewMemoryBLOBStore() *BLOBStore {
	return &BLOBStore{backend: &memoryBackend{}}
}

// Append writes a new cell and returns its starting offset.
func (s *BLOBStore) Append(kind byte, payload []byte) (uint64, error) {
	offset, err := s.backend.Size()
	if err != nil {
		return 0, fmt.Errorf("blob: size: %w", err)
	}
	cell := make([]byte, blobHeaderLen+len(payload))
	binary.BigEndian.PutUint64(cell, uint64(len(payload)))
	cell[8] = kind
	binary.BigEndian.PutUint64(cell[9:], checksumOf(payload))
	copy(cell[blobHeaderLen:], payload)
	if _, err := s.backend.WriteAt(cell, offset); err != nil {
		return 0, fmt.Errorf("blob: append at %d: %w", offset, err)
	}
	return uint64(offset), nil
}

// Read returns the cell at offset, validating its checksum.
func (s *BLOBStore) Read(offset uint64) (BLOBCellMetadata, []byte, error) {
	size, err := s.backend.Size()
	if err != nil {
		return BLOBCellMetadata{}, nil, fmt.Errorf("blob: size: %w", err)
	}
	if int64(offset)+blobHeaderLen > size {
		return BLOBCellMetadata{}, nil, core.Exactf("blob: offset %d beyond store length %d", offset, size)
	}
	header := make([]byte, blobHeaderLen)
	if _, err := s.backend.ReadAt(header, int64(offset)); err != nil {
		return BLOBCellMetadata{}, nil, fmt.Errorf("blob: read header at %d: %w", offset, err)
	}
	meta := BLOBCellMetadata{
		Length:   binary.BigEndian.Uint64(header),
		Kind:     header[8],
		Checksum: binary.BigEndian.Uint64(header[9:]),
	}
	if int64(offset)+blobHeaderLen+int64(meta.Length) > size {
		return meta, nil, core.Exactf("blob: cell at %d overruns store length %d", offset, size)
	}
	payload := make([]byte, meta.Length)
	if _, err := s.backend.ReadAt(payload, int64(offset)+blobHeaderLen); err != nil {
		return meta, nil, fmt.Errorf("blob: read payload at %d: %w", offset, err)
	}
	if got := checksumOf(payload); got != meta.Checksum {
		return meta, nil, core.Exactf("blob: checksum mismatch at %d (stored %x, computed %x)", offset, meta.Checksum, got)
	}
	return meta, payload, nil
}

// ReadValue decodes the tagged value stored in the cell at offset.
func (s *BLOBStore) ReadValue(offset uint64) (core.Value, error) {
	_, payload, err := s.Read(offset)
	if err != nil {
		return nil, err
	}
	v, _ := core.DecodeTagged(payload, 0)
	return v, nil
}

// AppendValue stores a value in tagged form and returns the cell offset.
func (s *BLOBStore) AppendValue(v core.Value) (uint64, error) {
	return s.Append(byte(v.Kind()), core.EncodeTagged(v))
}

// Close releases the underlying container.
func (s *BLOBStore) Close() error {
	return s.backend.Close()
}

func checksumOf(payload []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return h.Sum64()
}

// fileBackend adapts an *os.File to the blob backend contract.
type fileBackend struct {
	f *os.File
}

func (b fileBackend) ReadAt(p []byte, off int64) (int, error)  { return b.f.ReadAt(p, off) }
func (b fileBackend) WriteAt(p []byte, off int64) (int, error) { return b.f.WriteAt(p, off) }
func (b fileBackend) Close() error                             { return b.f.Close() }

func (b fileBackend) Size() (int64, error) {
	info, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// memoryBackend is a growable byte vector with positional I/O semantics
// matching the file backend.
type memoryBackend struct {
	data []byte
}

func (b *memoryBackend) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBackend) WriteAt(p []byte, off int64) (int, error) {
	if need := off + int64(len(p)); need > int64(len(b.data)) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	return copy(b.data[off:], p), nil
}

func (b *memoryBackend) Size() (int64, error) { return int64(len(b.data)), nil }
func (b *memoryBackend) Close() error         { return nil }
