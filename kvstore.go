// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"bytes"
	"sort"

	"github.com/bpowers/oat/internal/bytesutil"
	"github.com/bpowers/oat/internal/unsafestring"
)

// KeyValue is one property in the header's key/value store.
type KeyValue struct {
	Key   string
	Value string
}

// SortedKeyValues returns the entries of m ordered by key, which is the
// order properties are conventionally written in.
func SortedKeyValues(m map[string]string) []KeyValue {
	kvs := make([]KeyValue, 0, len(m))
	for k, v := range m {
		kvs = append(kvs, KeyValue{Key: k, Value: v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		return kvs[i].Key < kvs[j].Key
	})
	return kvs
}

func flattenedSize(props []KeyValue) int {
	size := 0
	for _, kv := range props {
		size += len(kv.Key) + 1
		size += len(kv.Value) + 1
	}
	return size
}

// appendFlattened writes each pair as key\0value\0, in order.
func appendFlattened(b []byte, props []KeyValue) []byte {
	for _, kv := range props {
		b = bytesutil.AppendCString(b, kv.Key)
		b = bytesutil.AppendCString(b, kv.Value)
	}
	return b
}

// nextPair splits the next well-formed pair off the front of store.  ok
// is false at the end of the store or if either string is missing its
// terminator, in which case the rest of the store is unreadable.
func nextPair(store []byte) (key, value, rest []byte, ok bool) {
	key, rest, ok = bytesutil.CutCString(store)
	if !ok {
		return nil, nil, nil, false
	}
	value, rest, ok = bytesutil.CutCString(rest)
	if !ok {
		return nil, nil, nil, false
	}
	return key, value, rest, true
}

// KeyValueStoreSize is the declared size of the key/value store.
func (h *Header) KeyValueStoreSize() uint32 {
	h.mustBeValid()
	return h.fields.Get(offKeyValueStoreSize)
}

// KeyValueStore returns the raw store, clamped to the bytes actually
// present.  The slice aliases the header and must not be modified.
func (h *Header) KeyValueStore() []byte {
	h.mustBeValid()
	return h.kv
}

// StoreValueByKey returns the value of the first pair whose key is key.
// A truncated or malformed store reads as if it ended at the first bad
// string.
func (h *Header) StoreValueByKey(key string) (string, bool) {
	h.mustBeValid()
	want := unsafestring.ToBytes(key)
	rest := h.kv
	for len(rest) > 0 {
		k, v, next, ok := nextPair(rest)
		if !ok {
			break
		}
		if bytes.Equal(k, want) {
			return string(v), true
		}
		rest = next
	}
	return "", false
}

// StoreKeyValuePairByIndex returns the index'th well-formed pair.
func (h *Header) StoreKeyValuePairByIndex(index int) (key, value string, ok bool) {
	h.mustBeValid()
	if index < 0 {
		return "", "", false
	}
	rest := h.kv
	for i := 0; len(rest) > 0; i++ {
		k, v, next, ok := nextPair(rest)
		if !ok {
			break
		}
		if i == index {
			return string(k), string(v), true
		}
		rest = next
	}
	return "", "", false
}

// StoreKeyValuePairs returns every well-formed pair in store order.
func (h *Header) StoreKeyValuePairs() []KeyValue {
	h.mustBeValid()
	var kvs []KeyValue
	rest := h.kv
	for len(rest) > 0 {
		k, v, next, ok := nextPair(rest)
		if !ok {
			break
		}
		kvs = append(kvs, KeyValue{Key: string(k), Value: string(v)})
		rest = next
	}
	return kvs
}

// IsKeyEnabled reports whether key's value is exactly TrueValue.
func (h *Header) IsKeyEnabled(key string) bool {
	v, ok := h.StoreValueByKey(key)
	return ok && v == TrueValue
}
