// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bpowers/oat"
)

// Relocate rewrites the container at path for a boot image that has
// moved delta bytes, which must be page-aligned.  The header's patch
// delta and image data begin are adjusted and its checksum recomputed;
// the file is replaced atomically and keeps its permissions.
func Relocate(path string, delta int32, opts ...Option) error {
	options := newOptions(opts)
	if delta%oat.PageSize != 0 {
		return fmt.Errorf("relocation delta %d not page-aligned", delta)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("os.Stat: %w", err)
	}

	f, err := ReadFile(path)
	if err != nil {
		return err
	}
	h := f.Header()
	oldDelta, oldBegin := h.ImagePatchDelta(), h.ImageFileLocationOatDataBegin()
	h.Relocate(delta)
	// the image data begin is covered by the checksum
	h.RecomputeChecksum()

	tmp, err := createTemp(path)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(f.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := replaceFile(tmp, path, stat.Mode().Perm()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}

	options.logger.Info("relocated oat file",
		"path", path,
		"delta", delta,
		"image_patch_delta", fmt.Sprintf("%d -> %d", oldDelta, h.ImagePatchDelta()),
		"image_oat_data_begin", fmt.Sprintf("%#x -> %#x", oldBegin, h.ImageFileLocationOatDataBegin()),
		"checksum", fmt.Sprintf("%#08x", h.Checksum()))
	return nil
}
