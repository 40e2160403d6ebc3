// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/bpowers/oat"
)

const (
	defaultBufferSize = 1024 * 1024
	trampolineAlign   = 16

	maxOffset = math.MaxUint32

	// noTrampoline precedes every trampoline in chain order
	noTrampoline = oat.Trampoline(-1)
)

var ErrFinished = errors.New("writer already finished")

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// FileWriter is usually an *os.File, but specified as an interface for easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// Config describes everything in a container except its trampolines
// and image linkage.
type Config struct {
	InstructionSet oat.InstructionSet
	Features       oat.Features
	Properties     []oat.KeyValue
	SubFiles       []SubFile
}

// Writer streams a container to a FileWriter.  It is not safe for
// concurrent use.
type Writer struct {
	f        FileWriter
	h        *oat.Header
	w        *bufio.Writer
	off      uint64
	last     oat.Trampoline
	logger   *slog.Logger
	finished atomic.Bool
}

// NewWriter writes a placeholder header, the sub-file table and the
// sub-files to f, and pads to the start of the executable region.
func NewWriter(f FileWriter, cfg Config, opts ...Option) (*Writer, error) {
	options := newOptions(opts)

	if !cfg.InstructionSet.IsValid() {
		return nil, fmt.Errorf("%w: %s", oat.ErrInvalidInstructionSet, cfg.InstructionSet)
	}
	if uint64(len(cfg.SubFiles)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many sub-files: %d", len(cfg.SubFiles))
	}
	for i, sf := range cfg.SubFiles {
		if sf.Location == "" {
			return nil, fmt.Errorf("sub-file %d: empty location not supported", i)
		}
	}

	h := oat.Create(cfg.InstructionSet, cfg.Features, uint32(len(cfg.SubFiles)), cfg.Properties)
	w := &Writer{
		f:      f,
		h:      h,
		w:      bufio.NewWriterSize(f, options.bufferSize),
		last:   noTrampoline,
		logger: options.logger,
	}

	// the real header is written over this at Finish
	if err := w.write(h.Bytes()); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	tableOff := align(w.off, tableAlign)
	if tableOff <= oat.FixedSize {
		// an empty key/value store would put the table right at the end
		// of the fixed header, which is reserved
		tableOff += tableAlign
	}
	dataOff := tableOff + tableSize(cfg.SubFiles)

	table := make([]byte, 0, dataOff-tableOff)
	for _, sf := range cfg.SubFiles {
		dataOff = align(dataOff, tableAlign)
		if dataOff+uint64(len(sf.Data)) > maxOffset {
			return nil, fmt.Errorf("container has grown too large (>4GB) at sub-file %q", sf.Location)
		}
		table = appendEntry(table, tableEntry{
			location:    []byte(sf.Location),
			fingerprint: sf.Fingerprint(),
			offset:      uint32(dataOff),
			size:        uint32(len(sf.Data)),
		})
		dataOff += uint64(len(sf.Data))
	}

	if err := w.padTo(tableOff); err != nil {
		return nil, err
	}
	h.SetSubFileTableOffset(uint32(tableOff))
	if err := w.write(table); err != nil {
		return nil, fmt.Errorf("sub-file table: %w", err)
	}
	for _, sf := range cfg.SubFiles {
		if err := w.padTo(align(w.off, tableAlign)); err != nil {
			return nil, err
		}
		if err := w.write(sf.Data); err != nil {
			return nil, fmt.Errorf("sub-file %q: %w", sf.Location, err)
		}
	}

	execOff := align(w.off, oat.PageSize)
	if execOff > maxOffset {
		return nil, errors.New("container has grown too large (>4GB)")
	}
	if err := w.padTo(execOff); err != nil {
		return nil, err
	}
	h.SetExecutableOffset(uint32(execOff))

	// try to expose errors when writing to the backing file early
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	w.logger.Debug("laid out container",
		"isa", cfg.InstructionSet.String(),
		"sub_files", len(cfg.SubFiles),
		"sub_file_table_offset", tableOff,
		"executable_offset", execOff)

	return w, nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.off += uint64(n)
	if err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}
	return nil
}

func (w *Writer) padTo(off uint64) error {
	if off < w.off {
		return fmt.Errorf("invariant broken: padding back to %d from %d", off, w.off)
	}
	if off == w.off {
		return nil
	}
	return w.write(make([]byte, off-w.off))
}

// Header returns the header being assembled.
func (w *Writer) Header() *oat.Header {
	return w.h
}

// WriteTrampoline appends the code for t to the executable region and
// records its offset.  Trampolines must be written in chain order, at
// most once each; ones never written are recorded as absent.
func (w *Writer) WriteTrampoline(t oat.Trampoline, code []byte) error {
	if w.finished.Load() {
		return ErrFinished
	}
	if t < 0 || int(t) >= oat.NumTrampolines {
		return fmt.Errorf("unknown trampoline %d", int(t))
	}
	if len(code) == 0 {
		return fmt.Errorf("%s: empty code not supported", t)
	}
	if t <= w.last {
		return fmt.Errorf("%s written after %s: trampolines must be written once each, in chain order", t, w.last)
	}
	if w.off+uint64(len(code)) > maxOffset {
		return errors.New("container has grown too large (>4GB)")
	}

	off := w.off
	if err := w.write(code); err != nil {
		return fmt.Errorf("%s: %w", t, err)
	}
	if err := w.padTo(align(w.off, trampolineAlign)); err != nil {
		return err
	}
	w.h.SetTrampolineOffset(t, uint32(off))
	w.last = t
	return nil
}

// SetImageLinkage records the checksum and load address of the
// container the associated boot image was compiled against.
func (w *Writer) SetImageLinkage(checksum, dataBegin uint32) error {
	if w.finished.Load() {
		return ErrFinished
	}
	if dataBegin%oat.PageSize != 0 {
		return fmt.Errorf("image oat data begin %#x not page-aligned", dataBegin)
	}
	w.h.SetImageFileLocationOatChecksum(checksum)
	w.h.SetImageFileLocationOatDataBegin(dataBegin)
	return nil
}

// SetImagePatchDelta records how far the boot image has moved from
// where it was built for.
func (w *Writer) SetImagePatchDelta(delta int32) error {
	if w.finished.Load() {
		return ErrFinished
	}
	if delta%oat.PageSize != 0 {
		return fmt.Errorf("image patch delta %d not page-aligned", delta)
	}
	w.h.SetImagePatchDelta(delta)
	return nil
}

// Finish flushes buffered data, seals the header checksum and writes
// the final header at the start of the file.  Calling it more than once
// is harmless.
func (w *Writer) Finish() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return nil
	}

	defer func() {
		w.w.Reset(&nopWriter{})
		w.w = nil
	}()

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}

	w.h.RecomputeChecksum()
	header := w.h.Bytes()
	if n, err := w.f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("header WriteAt: %w", err)
	} else if n != len(header) {
		return fmt.Errorf("header WriteAt: short write of %d (wanted %d)", n, len(header))
	}

	w.logger.Debug("finished container",
		"size", w.off,
		"checksum", fmt.Sprintf("%#08x", w.h.Checksum()))

	return nil
}

// Size is the number of bytes written so far.
func (w *Writer) Size() uint64 {
	return w.off
}
