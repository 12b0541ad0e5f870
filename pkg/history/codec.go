package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Snapshot blob layout: one format byte, the uncompressed length as uint32
// little endian, then the payload (raw or an lz4 block).
const (
	formatRaw  byte = 0
	formatLZ4  byte = 1
	headerSize      = 5
	// maxSnapshotSize bounds the declared length of a blob before allocation.
	maxSnapshotSize = 64 << 20
)

// EncodeRecord serializes a record as JSON and compresses it with LZ4.
func EncodeRecord(rec Record) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	blob := make([]byte, headerSize+lz4.CompressBlockBound(len(payload)))
	binary.LittleEndian.PutUint32(blob[1:headerSize], uint32(len(payload)))

	written, err := lz4.CompressBlock(payload, blob[headerSize:], nil)
	if err != nil || written == 0 {
		// Incompressible payloads are stored as they are.
		blob = append(blob[:headerSize], payload...)
		blob[0] = formatRaw

		return blob, nil
	}

	blob[0] = formatLZ4

	return blob[:headerSize+written], nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(blob []byte) (Record, error) {
	if len(blob) < headerSize {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(blob))
	}

	size := binary.LittleEndian.Uint32(blob[1:headerSize])
	if size > maxSnapshotSize {
		return Record{}, fmt.Errorf("%w: declared size %d", ErrCorrupt, size)
	}

	var payload []byte

	switch blob[0] {
	case formatRaw:
		payload = blob[headerSize:]
	case formatLZ4:
		payload = make([]byte, size)

		n, err := lz4.UncompressBlock(blob[headerSize:], payload)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		payload = payload[:n]
	default:
		return Record{}, fmt.Errorf("%w: format %d", ErrCorrupt, blob[0])
	}

	var rec Record

	err := json.Unmarshal(payload, &rec)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return rec, nil
}
