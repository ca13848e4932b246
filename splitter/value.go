//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package splitter

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Value is the transient handle a filter receives. Raw aliases the chunk
// being processed and must not be retained after the filter returns; use
// Result, Str or Decode to keep data.
type Value struct {
	path   string
	raw    []byte
	offset int64
}

// NewValue wraps raw bytes found at path. It is meant for callers that feed
// values to a dispatch target without a splitter, such as tests and replays.
func NewValue(path string, raw []byte) *Value {
	return &Value{path: path, raw: raw}
}

// Path returns the path the value matched.
func (v *Value) Path() string {
	return v.path
}

// Raw returns the undecoded bytes of the value.
func (v *Value) Raw() []byte {
	return v.raw
}

// Offset returns the absolute offset of the first byte of the value,
// counted from the last Clear of the splitter.
func (v *Value) Offset() int64 {
	return v.offset
}

// Len returns the length of the value in bytes.
func (v *Value) Len() int {
	return len(v.raw)
}

// Result parses the value with gjson. The result owns its memory.
func (v *Value) Result() gjson.Result {
	return gjson.ParseBytes(v.raw)
}

// Str returns the value as an unescaped string. Numbers and literals are
// returned in their textual form.
func (v *Value) Str() string {
	return v.Result().String()
}

// Int returns the value as an integer, zero when it is not numeric.
func (v *Value) Int() int64 {
	return v.Result().Int()
}

// Bool returns the value as a boolean following gjson conversion rules.
func (v *Value) Bool() bool {
	return v.Result().Bool()
}

// IsArray reports whether the value is a JSON array.
func (v *Value) IsArray() bool {
	return v.Result().IsArray()
}

// IsObject reports whether the value is a JSON object.
func (v *Value) IsObject() bool {
	return v.Result().IsObject()
}

// ForEach calls fn for every element of an array value, in order, until fn
// returns false. It does nothing for other kinds of values.
func (v *Value) ForEach(fn func(i int, elem gjson.Result) bool) {
	r := v.Result()
	if !r.IsArray() {
		return
	}
	i := 0
	r.ForEach(func(_, elem gjson.Result) bool {
		ok := fn(i, elem)
		i++
		return ok
	})
}

// String implements fmt.Stringer for diagnostics.
func (v *Value) String() string {
	return fmt.Sprintf("%s@%d(%d bytes)", v.path, v.offset, len(v.raw))
}
