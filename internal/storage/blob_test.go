package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
)

func TestBLOBRoundTripMemory(t *testing.T) {
	store := NewMemoryBLOBStore()
	payloads := [][]byte{
		[]byte("hello"),
		{},
		[]byte("a longer payload that spans more than a few bytes"),
	}
	var offsets []uint64
	for _, payload := range payloads {
		offset, err := store.Append(7, payload)
		require.NoError(t, err)
		offsets = append(offsets, offset)
	}
	for i, offset := range offsets {
		meta, payload, err := store.Read(offset)
		require.NoError(t, err)
		assert.Equal(t, byte(7), meta.Kind)
		assert.Equal(t, uint64(len(payloads[i])), meta.Length)
		assert.Equal(t, payloads[i], payload)
	}
}

func TestBLOBRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.blob")
	store, err := OpenBLOBFile(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	first, err := store.Append(1, []byte("first"))
	require.NoError(t, err)
	second, err := store.Append(2, []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(blobHeaderLen+len("first")), second)

	_, payload, err := store.Read(second)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), payload)
}

func TestBLOBChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.blob")
	store, err := OpenBLOBFile(path)
	require.NoError(t, err)
	offset, err := store.Append(1, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// corrupt one payload byte on disk
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[blobHeaderLen] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store, err = OpenBLOBFile(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	_, _, err = store.Read(offset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestBLOBOffsetBeyondLength(t *testing.T) {
	store := NewMemoryBLOBStore()
	_, _, err := store.Read(1024)
	require.Error(t, err)
}

func TestBLOBCellHeaderLayout(t *testing.T) {
	store := NewMemoryBLOBStore()
	offset, err := store.Append(9, []byte("xyz"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), offset)

	mem := store.backend.(*memoryBackend)
	assert.Equal(t, uint64(3), binary.BigEndian.Uint64(mem.data[0:8]))
	assert.Equal(t, byte(9), mem.data[8])
	assert.Equal(t, checksumOf([]byte("xyz")), binary.BigEndian.Uint64(mem.data[9:17]))
	assert.Equal(t, []byte("xyz"), mem.data[17:20])
}

func TestBLOBValueRoundTrip(t *testing.T) {
	store := NewMemoryBLOBStore()
	original := core.Str("a value that would never fit an 8-byte pointer slot")
	offset, err := store.AppendValue(original)
	require.NoError(t, err)
	decoded, err := store.ReadValue(offset)
	require.NoError(t, err)
	assert.Equal(t, core.Value(original), decoded)
}
