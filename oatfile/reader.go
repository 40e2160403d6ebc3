// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bpowers/oat"
)

var (
	ErrCorrupt          = errors.New("corrupt oat file")
	ErrChecksumMismatch = errors.New("sub-file checksum mismatch")
	ErrClosed           = errors.New("oat file closed")
)

// File is a container loaded into memory, either mapped read-only or
// copied onto the heap.
type File struct {
	data    []byte
	h       *oat.Header
	mmapped bool
	closed  atomic.Bool
}

// Open maps the container at path read-only and validates its header
// and layout.  The returned file must be closed to release the mapping,
// and nothing it returns may be written to.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	size, err := checkSize(stat.Size())
	if err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap(%s): %w", path, err)
	}
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("madvise: %w", err)
	}

	file, err := parse(data, true)
	if err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	return file, nil
}

// ReadFile copies the container at path onto the heap.  Unlike a mapped
// file, its header may be modified.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", path, err)
	}
	if _, err := checkSize(int64(len(data))); err != nil {
		return nil, err
	}
	return parse(data, false)
}

// OpenReaderAt loads a container of size bytes from r onto the heap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	var off int64
	for off < size {
		n, err := r.ReadAt(data[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == size {
			break
		}
		return nil, fmt.Errorf("ReadAt(%d): %w", off, err)
	}
	return parse(data, false)
}

func checkSize(size int64) (int, error) {
	if size < oat.FixedSize {
		return 0, fmt.Errorf("%w: file too short: %d < %d", ErrCorrupt, size, oat.FixedSize)
	}
	if uint64(size) > maxOffset {
		return 0, fmt.Errorf("%w: file too large: %d", ErrCorrupt, size)
	}
	return int(size), nil
}

func parse(data []byte, mmapped bool) (*File, error) {
	h, err := oat.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("oat.FromBytes: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := h.CheckLayout(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	size := uint64(len(data))
	if uint64(h.HeaderSize()) > size {
		return nil, fmt.Errorf("%w: header of %d bytes in file of %d", ErrCorrupt, h.HeaderSize(), size)
	}
	tableOff := uint64(h.SubFileTableOffset())
	if h.SubFileCount() > 0 && tableOff == 0 {
		return nil, fmt.Errorf("%w: %d sub-files but no table", ErrCorrupt, h.SubFileCount())
	}
	if tableOff != 0 && (tableOff < uint64(h.HeaderSize()) || tableOff > size) {
		return nil, fmt.Errorf("%w: sub-file table offset %d out of bounds", ErrCorrupt, tableOff)
	}
	execOff := uint64(h.ExecutableOffset())
	if execOff > size {
		return nil, fmt.Errorf("%w: executable offset %d beyond end of file (%d)", ErrCorrupt, execOff, size)
	}
	if execOff != 0 && execOff < tableOff {
		return nil, fmt.Errorf("%w: executable offset %d before sub-file table", ErrCorrupt, execOff)
	}
	for _, t := range oat.Trampolines() {
		if off := uint64(h.TrampolineOffset(t)); off >= size {
			return nil, fmt.Errorf("%w: %s at %d beyond end of file (%d)", ErrCorrupt, t, off, size)
		}
	}

	return &File{
		data:    data,
		h:       h,
		mmapped: mmapped,
	}, nil
}

// Header returns the validated header.  A mapped file's header is
// read-only and must not be used after Close.
func (f *File) Header() *oat.Header {
	return f.h
}

// Bytes returns the whole container.
func (f *File) Bytes() []byte {
	return f.data
}

// Len is the size of the container in bytes.
func (f *File) Len() int {
	return len(f.data)
}

// SubFiles decodes the sub-file table and verifies each sub-file's
// fingerprint.  The returned data aliases the file; an empty sub-file
// reads back as an empty, non-nil slice.
func (f *File) SubFiles() ([]SubFile, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	count := f.h.SubFileCount()
	if count == 0 {
		return nil, nil
	}

	table := f.data[f.h.SubFileTableOffset():]
	if uint64(count)*entrySize(0) > uint64(len(table)) {
		return nil, fmt.Errorf("%w: %d sub-files cannot fit in %d bytes", ErrCorrupt, count, len(table))
	}
	subFiles := make([]SubFile, 0, count)
	for i := uint32(0); i < count; i++ {
		var e tableEntry
		var err error
		e, table, err = decodeEntry(table)
		if err != nil {
			return nil, fmt.Errorf("sub-file %d: %w", i, err)
		}
		end := uint64(e.offset) + uint64(e.size)
		if end > uint64(len(f.data)) {
			return nil, fmt.Errorf("%w: sub-file %q [%d, %d) beyond end of file", ErrCorrupt, e.location, e.offset, end)
		}
		sf := SubFile{
			Location: string(e.location),
			Data:     f.data[e.offset:end:end],
		}
		if fp := sf.Fingerprint(); fp != e.fingerprint {
			return nil, fmt.Errorf("%w: %q (%#08x != %#08x)", ErrChecksumMismatch, sf.Location, fp, e.fingerprint)
		}
		subFiles = append(subFiles, sf)
	}
	return subFiles, nil
}

// Trampoline returns the code recorded for t: the bytes from its offset
// up to the next larger trampoline offset or the end of the file.  It
// returns nil if the container does not carry t.
func (f *File) Trampoline(t oat.Trampoline) []byte {
	if f.closed.Load() {
		return nil
	}
	off := f.h.TrampolineOffset(t)
	if off == 0 {
		return nil
	}
	end := uint32(len(f.data))
	for _, other := range oat.Trampolines() {
		if o := f.h.TrampolineOffset(other); o > off && o < end {
			end = o
		}
	}
	return f.data[off:end:end]
}

// Close releases the mapping, if any.  Calling it more than once is
// harmless.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	if f.mmapped {
		data := f.data
		f.data = nil
		return unix.Munmap(data)
	}
	return nil
}
