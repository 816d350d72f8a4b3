// Package chunkio reads and writes byte ranges of files on local disk.
//
// It backs both the server side (serving a requested range of a catalog
// file) and the client side (reassembling a downloaded or xcopied file
// from its declared offsets). It deliberately knows nothing about
// manifests, digests, or the network — it is the single collaborator
// both sides of the transfer engine share.
package chunkio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound reports that the requested path does not exist.
var ErrNotFound = errors.New("chunkio: not found")

// ErrOutOfRange reports that skip is past the end of the file.
var ErrOutOfRange = errors.New("chunkio: skip past end of file")

// Part is a contiguous byte range read from or destined for a file.
// Take always equals len(Bytes); Skip+Take <= the file's size for a read.
type Part struct {
	Skip  uint64
	Take  uint64
	Bytes []byte
}

// ReadFull reads an entire file and returns it as a single Part with Skip 0.
func ReadFull(path string) (Part, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Part{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Part{}, fmt.Errorf("chunkio: read %s: %w", path, err)
	}
	return Part{Skip: 0, Take: uint64(len(b)), Bytes: b}, nil
}

// ReadRange seeks to skip and reads exactly take bytes. If EOF is hit
// before take bytes are read, it returns whatever bytes remain from skip
// onward — the only case where the returned Part.Take is less than the
// requested take.
func ReadRange(path string, skip, take uint64) (Part, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Part{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Part{}, fmt.Errorf("chunkio: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Part{}, fmt.Errorf("chunkio: stat %s: %w", path, err)
	}
	size := uint64(info.Size())
	if skip > size {
		return Part{}, fmt.Errorf("%w: skip=%d size=%d path=%s", ErrOutOfRange, skip, size, path)
	}

	buf := make([]byte, take)
	n, err := f.ReadAt(buf, int64(skip))
	if err != nil && !errors.Is(err, io.EOF) {
		return Part{}, fmt.Errorf("chunkio: read %s: %w", path, err)
	}
	return Part{Skip: skip, Take: uint64(n), Bytes: buf[:n]}, nil
}

// Create truncates (or creates) path so a sequence of WriteAt calls can
// fill it at arbitrary offsets. Parent directories must already exist.
func Create(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("chunkio: create %s: %w", path, err)
	}
	return f, nil
}

// WriteAt writes bytes at skip into an already-created file.
func WriteAt(f *os.File, skip uint64, bytes []byte) error {
	if _, err := f.WriteAt(bytes, int64(skip)); err != nil {
		return fmt.Errorf("chunkio: write at %d: %w", skip, err)
	}
	return nil
}

// Size returns the size of path in bytes.
func Size(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("chunkio: stat %s: %w", path, err)
	}
	return uint64(info.Size()), nil
}
