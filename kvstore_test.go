// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawHeader wraps a hand-built store behind an otherwise valid header,
// declaring size bytes for it.
func rawHeader(t *testing.T, store string, size uint32) *Header {
	t.Helper()
	buf := append([]byte{}, Create(InstructionSetArm, nil, 0, nil).Bytes()...)
	binary.LittleEndian.PutUint32(buf[offKeyValueStoreSize:], size)
	buf = append(buf, store...)
	h, err := FromBytes(buf)
	require.NoError(t, err)
	require.NoError(t, h.Validate())
	return h
}

func TestKeyValueStore_Example(t *testing.T) {
	h := Create(InstructionSetX86, nil, 0, []KeyValue{
		{Key: DebuggableKey, Value: TrueValue},
		{Key: PicKey, Value: FalseValue},
	})

	v, ok := h.StoreValueByKey("debuggable")
	require.True(t, ok)
	require.Equal(t, "true", v)
	require.False(t, h.IsKeyEnabled("pic"))

	k, v, ok := h.StoreKeyValuePairByIndex(1)
	require.True(t, ok)
	require.Equal(t, "pic", k)
	require.Equal(t, "false", v)
}

func TestKeyValueStore_RoundTrip(t *testing.T) {
	h := newTestHeader(t)

	for i, kv := range testProps {
		v, ok := h.StoreValueByKey(kv.Key)
		require.True(t, ok, kv.Key)
		require.Equal(t, kv.Value, v)

		k, v, ok := h.StoreKeyValuePairByIndex(i)
		require.True(t, ok)
		require.Equal(t, kv.Key, k)
		require.Equal(t, kv.Value, v)
	}
	_, _, ok := h.StoreKeyValuePairByIndex(len(testProps))
	require.False(t, ok)
	_, _, ok = h.StoreKeyValuePairByIndex(-1)
	require.False(t, ok)

	require.Equal(t, testProps, h.StoreKeyValuePairs())

	_, ok = h.StoreValueByKey(BootClassPathKey)
	require.False(t, ok)
}

func TestKeyValueStore_EmptyStrings(t *testing.T) {
	h := Create(InstructionSetArm, nil, 0, []KeyValue{
		{Key: "empty", Value: ""},
		{Key: "", Value: "anonymous"},
		{Key: "after", Value: "x"},
	})

	v, ok := h.StoreValueByKey("empty")
	require.True(t, ok)
	require.Equal(t, "", v)
	v, ok = h.StoreValueByKey("")
	require.True(t, ok)
	require.Equal(t, "anonymous", v)
	v, ok = h.StoreValueByKey("after")
	require.True(t, ok)
	require.Equal(t, "x", v)
}

func TestKeyValueStore_DuplicateKeys(t *testing.T) {
	h := Create(InstructionSetArm, nil, 0, []KeyValue{
		{Key: "dup", Value: "first"},
		{Key: "dup", Value: "second"},
	})

	v, ok := h.StoreValueByKey("dup")
	require.True(t, ok)
	require.Equal(t, "first", v)

	// both remain reachable by index
	_, v, ok = h.StoreKeyValuePairByIndex(1)
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestKeyValueStore_PrefixKeys(t *testing.T) {
	h := Create(InstructionSetArm, nil, 0, []KeyValue{
		{Key: "classpath-extra", Value: "a"},
		{Key: "class", Value: "b"},
		{Key: ClassPathKey, Value: "c"},
	})

	v, ok := h.StoreValueByKey(ClassPathKey)
	require.True(t, ok)
	require.Equal(t, "c", v)
	_, ok = h.StoreValueByKey("classp")
	require.False(t, ok)
}

func TestKeyValueStore_ValueNotMistakenForKey(t *testing.T) {
	h := Create(InstructionSetArm, nil, 0, []KeyValue{
		{Key: "a", Value: "pic"},
		{Key: "b", Value: "true"},
	})

	_, ok := h.StoreValueByKey("pic")
	require.False(t, ok)
	require.False(t, h.IsPic())
}

func TestKeyValueStore_Truncated(t *testing.T) {
	const store = "debuggable\x00true\x00pic\x00false\x00"

	tests := []struct {
		name    string
		store   string
		size    uint32
		lookups map[string]bool
		pairs   int
	}{
		{
			name:    "intact",
			store:   store,
			size:    uint32(len(store)),
			lookups: map[string]bool{"debuggable": true, "pic": true},
			pairs:   2,
		},
		{
			name:    "size past end of buffer",
			store:   store,
			size:    uint32(len(store)) + 1024,
			lookups: map[string]bool{"debuggable": true, "pic": true},
			pairs:   2,
		},
		{
			name:    "value missing terminator",
			store:   "debuggable\x00true\x00pic\x00fals",
			size:    uint32(len(store)),
			lookups: map[string]bool{"debuggable": true, "pic": false},
			pairs:   1,
		},
		{
			name:    "key missing terminator",
			store:   "debuggable\x00true\x00pi",
			size:    uint32(len(store)),
			lookups: map[string]bool{"debuggable": true, "pic": false, "pi": false},
			pairs:   1,
		},
		{
			name:    "declared size cuts the store",
			store:   store,
			size:    uint32(len("debuggable\x00tr")),
			lookups: map[string]bool{"debuggable": false, "pic": false},
			pairs:   0,
		},
		{
			name:    "unterminated first key",
			store:   "debuggable",
			size:    10,
			lookups: map[string]bool{"debuggable": false},
			pairs:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := rawHeader(t, tt.store, tt.size)
			require.LessOrEqual(t, len(h.KeyValueStore()), len(tt.store))
			require.Equal(t, FixedSize+int(tt.size), h.HeaderSize())

			for key, found := range tt.lookups {
				_, ok := h.StoreValueByKey(key)
				assert.Equal(t, found, ok, key)
			}
			assert.Len(t, h.StoreKeyValuePairs(), tt.pairs)
			_, _, ok := h.StoreKeyValuePairByIndex(tt.pairs)
			assert.False(t, ok)
		})
	}
}

func TestKeyValueStore_DeclaredSizeIgnoresTrailingBytes(t *testing.T) {
	// bytes past the declared store belong to the container
	h := rawHeader(t, "pic\x00true\x00debuggable\x00true\x00", uint32(len("pic\x00true\x00")))
	require.True(t, h.IsPic())
	require.False(t, h.IsDebuggable())
	require.Equal(t, []byte("pic\x00true\x00"), h.KeyValueStore())
}

func TestIsKeyEnabled(t *testing.T) {
	h := Create(InstructionSetArm, nil, 0, []KeyValue{
		{Key: "exact", Value: "true"},
		{Key: "capital", Value: "True"},
		{Key: "padded", Value: "true "},
		{Key: "number", Value: "1"},
		{Key: "off", Value: "false"},
	})

	assert.True(t, h.IsKeyEnabled("exact"))
	assert.False(t, h.IsKeyEnabled("capital"))
	assert.False(t, h.IsKeyEnabled("padded"))
	assert.False(t, h.IsKeyEnabled("number"))
	assert.False(t, h.IsKeyEnabled("off"))
	assert.False(t, h.IsKeyEnabled("missing"))
}

func TestKnownKeys(t *testing.T) {
	h := Create(InstructionSetArm64, nil, 0, SortedKeyValues(map[string]string{
		PicKey:               BoolValue(true),
		DebuggableKey:        BoolValue(false),
		NativeDebuggableKey:  BoolValue(true),
		ConcurrentCopyingKey: BoolValue(true),
		CompilerFilterKey:    "speed-profile",
		CompilationReasonKey: "install",
		ImageLocationKey:     "/system/framework/boot.art",
		ClassPathKey:         "/data/app/base.apk",
		BootClassPathKey:     "/apex/core.jar",
	}))

	assert.True(t, h.IsPic())
	assert.False(t, h.IsDebuggable())
	assert.True(t, h.IsNativeDebuggable())
	assert.True(t, h.IsConcurrentCopying())

	get := func(f func() (string, bool)) string {
		v, ok := f()
		require.True(t, ok)
		return v
	}
	assert.Equal(t, "speed-profile", get(h.CompilerFilter))
	assert.Equal(t, "install", get(h.CompilationReason))
	assert.Equal(t, "/system/framework/boot.art", get(h.ImageLocation))
	assert.Equal(t, "/data/app/base.apk", get(h.ClassPath))
	assert.Equal(t, "/apex/core.jar", get(h.BootClassPath))

	// the sorted order is what got written
	k, _, ok := h.StoreKeyValuePairByIndex(0)
	require.True(t, ok)
	assert.Equal(t, BootClassPathKey, k)
}

func TestSortedKeyValues(t *testing.T) {
	require.Empty(t, SortedKeyValues(nil))
	require.Equal(t, []KeyValue{
		{Key: "a", Value: "3"},
		{Key: "b", Value: "1"},
		{Key: "c", Value: "2"},
	}, SortedKeyValues(map[string]string{"b": "1", "c": "2", "a": "3"}))
}

func TestStoreValueByKey_NoAllocOnMiss(t *testing.T) {
	h := newTestHeader(t)
	allocs := testing.AllocsPerRun(100, func() {
		if _, ok := h.StoreValueByKey(BootClassPathKey); ok {
			panic("unexpected hit")
		}
	})
	require.Equal(t, float64(0), allocs)
}

func TestKeyValueStore_ConcurrentReaders(t *testing.T) {
	h := newTestHeader(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !h.IsDebuggable() || h.IsPic() {
					t.Error("wrong boolean property")
					return
				}
				if v, ok := h.CompilerFilter(); !ok || v != "speed" {
					t.Errorf("CompilerFilter() = %q, %v", v, ok)
					return
				}
				if len(h.StoreKeyValuePairs()) != len(testProps) {
					t.Error("wrong pair count")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkStoreValueByKey(b *testing.B) {
	h := newTestHeader(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := h.StoreValueByKey(ClassPathKey); !ok {
			b.Fatal("missing classpath")
		}
	}
}
