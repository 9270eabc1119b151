package persistence

import (
	"fmt"
	"os"
	"path/filepath"
)

// Frame wraps a codec payload with the snapshot header, compressing and
// checksumming it.
func Frame(payload []byte, c Compression) ([]byte, error) {
	stored, effective, err := compress(payload, c)
	if err != nil {
		return nil, err
	}

	header := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: effective,
		PayloadSize: uint64(len(stored)),
		RawSize:     uint64(len(payload)),
		Checksum:    Checksum(stored),
	}

	out := make([]byte, 0, headerSize+len(stored))
	out = append(out, header.marshal()...)
	out = append(out, stored...)
	return out, nil
}

// Unframe verifies the header and checksum and returns the codec payload.
func Unframe(data []byte) ([]byte, error) {
	header, err := unmarshalHeader(data)
	if err != nil {
		return nil, err
	}

	stored := data[headerSize:]
	if uint64(len(stored)) != header.PayloadSize {
		return nil, fmt.Errorf("%w: %d payload bytes, header records %d", ErrTruncatedSnapshot, len(stored), header.PayloadSize)
	}
	if actual := Checksum(stored); actual != header.Checksum {
		return nil, &ChecksumMismatchError{Expected: header.Checksum, Actual: actual}
	}

	return decompress(stored, header.Compression, header.RawSize)
}

// SaveToFile writes a framed snapshot atomically: the bytes go to a
// temporary file in the target directory, are synced, and only then
// renamed over the destination.
func SaveToFile(path string, framed []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(framed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadFromFile reads a framed snapshot and returns the codec payload.
func LoadFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Unframe(data)
}
