// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bpowers/oat"
)

// Builder produces a container file at a fixed path.  Everything is
// written to a temporary file in the same directory, which replaces the
// result path only when Finalize succeeds.
type Builder struct {
	resultPath string
	f          *os.File
	w          *Writer
	logger     *slog.Logger
}

// NewBuilder starts building a container for cfg that will end up at
// path.
func NewBuilder(path string, cfg Config, opts ...Option) (*Builder, error) {
	options := newOptions(opts)
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}
	f, err := createTemp(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, cfg, opts...)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("NewWriter: %w", err)
	}
	return &Builder{
		resultPath: path,
		f:          f,
		w:          w,
		logger:     options.logger,
	}, nil
}

func createTemp(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "oat-builder.*.oat")
	if err != nil {
		return nil, fmt.Errorf("CreateTemp failed (may need permissions for dir %q containing %q): %w", dir, filepath.Base(path), err)
	}
	return f, nil
}

// Header returns the header being assembled.
func (b *Builder) Header() *oat.Header {
	return b.w.Header()
}

func (b *Builder) WriteTrampoline(t oat.Trampoline, code []byte) error {
	return b.w.WriteTrampoline(t, code)
}

func (b *Builder) SetImageLinkage(checksum, dataBegin uint32) error {
	return b.w.SetImageLinkage(checksum, dataBegin)
}

func (b *Builder) SetImagePatchDelta(delta int32) error {
	return b.w.SetImagePatchDelta(delta)
}

// Finalize seals the container and moves it into place, read-only.
func (b *Builder) Finalize() error {
	if b.f == nil {
		return ErrFinished
	}
	if err := b.w.Finish(); err != nil {
		b.Abort()
		return fmt.Errorf("Writer.Finish: %w", err)
	}
	if err := replaceFile(b.f, b.resultPath, 0444); err != nil {
		b.Abort()
		return err
	}
	b.f = nil

	b.logger.Info("built oat file",
		"path", b.resultPath,
		"size", b.w.Size(),
		"checksum", fmt.Sprintf("%#08x", b.w.Header().Checksum()))
	return nil
}

// Abort discards the partially written container.  It is a no-op after
// Finalize.
func (b *Builder) Abort() {
	if b.f == nil {
		return
	}
	_ = b.f.Close()
	_ = os.Remove(b.f.Name())
	b.f = nil
}

// replaceFile syncs and closes the temporary file f, sets its
// permissions, and renames it over path.
func replaceFile(f *os.File, path string, perm os.FileMode) error {
	if err := f.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := os.Chmod(f.Name(), perm); err != nil {
		return fmt.Errorf("os.Chmod(%o): %w", perm, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	return f.Close()
}
