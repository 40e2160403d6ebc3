// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package oat defines the header found at the start of an
// ahead-of-time compiled code container ("OAT" image).
//
// The header is a fixed run of 4-byte little-endian fields followed by
// a variable-length key/value store:
//
//	 0    4    8    12   16   20   24   28
//	+----+----+----+----+----+----+----+----+
//	|magc|vers|csum|isa |feat|#sub|subT|exec|
//	+----+----+----+----+----+----+----+----+
//	|i2i |i2c |jni |gjni|imt |res |q2i |dlta|
//	+----+----+----+----+----+----+----+----+
//	|iCks|iBeg|kvsz| key\0value\0key\0...   |
//	+----+----+----+----+----+----+----+----+
//
// The seven trampoline offsets (i2i through q2i) locate fixed code
// sequences in the container's executable region.  Each is either 0,
// meaning the code only lives in the shared boot image, or a byte
// offset from the start of the header that is no smaller than the
// executable offset and any earlier non-zero trampoline.
//
// A Header is built once by Create, has its offsets assigned exactly
// once by the container assembler, and is sealed by RecomputeChecksum.
// Headers read back from storage go through FromBytes and must pass
// Validate before any other accessor is used; accessors panic
// otherwise.  After that a Header is read-only and safe for concurrent
// use.
package oat
