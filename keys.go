// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

// Keys with a defined meaning.  The store does not enforce a schema:
// any key may be absent and unknown keys are carried along untouched.
const (
	ImageLocationKey     = "image-location"
	Dex2OatCmdLineKey    = "dex2oat-cmdline"
	Dex2OatHostKey       = "dex2oat-host"
	PicKey               = "pic"
	DebuggableKey        = "debuggable"
	NativeDebuggableKey  = "native-debuggable"
	CompilerFilterKey    = "compiler-filter"
	ClassPathKey         = "classpath"
	BootClassPathKey     = "bootclasspath"
	ConcurrentCopyingKey = "concurrent-copying"
	CompilationReasonKey = "compilation-reason"
)

// Boolean property values.
const (
	TrueValue  = "true"
	FalseValue = "false"
)

// BoolValue returns the store encoding of b.
func BoolValue(b bool) string {
	if b {
		return TrueValue
	}
	return FalseValue
}

func (h *Header) IsPic() bool {
	return h.IsKeyEnabled(PicKey)
}

func (h *Header) IsDebuggable() bool {
	return h.IsKeyEnabled(DebuggableKey)
}

func (h *Header) IsNativeDebuggable() bool {
	return h.IsKeyEnabled(NativeDebuggableKey)
}

func (h *Header) IsConcurrentCopying() bool {
	return h.IsKeyEnabled(ConcurrentCopyingKey)
}

// CompilerFilter returns the compiler filter name the code was built
// with.  Interpreting it is up to the caller.
func (h *Header) CompilerFilter() (string, bool) {
	return h.StoreValueByKey(CompilerFilterKey)
}

func (h *Header) CompilationReason() (string, bool) {
	return h.StoreValueByKey(CompilationReasonKey)
}

func (h *Header) ImageLocation() (string, bool) {
	return h.StoreValueByKey(ImageLocationKey)
}

func (h *Header) ClassPath() (string, bool) {
	return h.StoreValueByKey(ClassPathKey)
}

func (h *Header) BootClassPath() (string, bool) {
	return h.StoreValueByKey(BootClassPathKey)
}
