// Package persistence writes cover tree snapshots to files and blob
// stores, framing the codec payload with a versioned header, CRC32
// integrity check and optional compression.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies cover tree snapshot files (ASCII: "CTR1").
	MagicNumber = 0x43545231
	// Version is the current snapshot format version.
	Version = 0x00010000

	headerSize = 32
)

// Compression identifies the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, good for cold snapshots).
	CompressionZSTD Compression = 2
)

var (
	ErrInvalidMagic      = errors.New("invalid magic number")
	ErrInvalidVersion    = errors.New("unsupported version")
	ErrUnknownCompressor = errors.New("unknown compression algorithm")
	ErrTruncatedSnapshot = errors.New("truncated snapshot")
)

// FileHeader is the fixed-size header at the start of every snapshot.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	Compression Compression
	PayloadSize uint64 // stored payload bytes
	RawSize     uint64 // payload bytes after decompression
	Checksum    uint32 // CRC32 (IEEE) of the stored payload
}

func (h FileHeader) marshal() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	buf[8] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[12:], h.PayloadSize)
	binary.LittleEndian.PutUint64(buf[20:], h.RawSize)
	binary.LittleEndian.PutUint32(buf[28:], h.Checksum)
	return buf
}

func unmarshalHeader(buf []byte) (FileHeader, error) {
	var h FileHeader
	if len(buf) < headerSize {
		return h, ErrTruncatedSnapshot
	}

	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	h.Compression = Compression(buf[8])
	h.PayloadSize = binary.LittleEndian.Uint64(buf[12:])
	h.RawSize = binary.LittleEndian.Uint64(buf[20:])
	h.Checksum = binary.LittleEndian.Uint32(buf[28:])

	if h.Magic != MagicNumber {
		return h, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, h.Version)
	}
	return h, nil
}
