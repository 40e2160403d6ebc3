// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package oatfile assembles and maps OAT containers: an oat.Header
// followed by the sub-file table, the sub-files, and the page-aligned
// executable region holding trampoline code.
//
//	+-------------------------+ 0
//	| header + key/value store|
//	+-------------------------+ SubFileTableOffset (4-byte aligned)
//	| sub-file table          |
//	+-------------------------+
//	| sub-file data           |  each entry padded to 4 bytes
//	+-------------------------+ ExecutableOffset (page-aligned)
//	| trampoline code         |  chain order, each padded to 16 bytes
//	+-------------------------+
//
// A sub-file table entry is
//
//	u32 location length | location | pad to 4 | u32 fingerprint | u32 offset | u32 size
//
// where the fingerprint is farm.Fingerprint32 of the sub-file's bytes
// and offsets are from the start of the file.
//
// A Writer lays out everything up to the executable region when it is
// created, then accepts trampolines in chain order.  Finish seals the
// header checksum and rewrites the header in place.  A Builder wraps a
// Writer to produce a read-only file through a temporary file and an
// atomic rename.
package oatfile
