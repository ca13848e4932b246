//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package splitter

// Path markers. Every value in a document contributes one path segment made
// of its marker followed by its member name. Array elements and the root
// value have an empty name.
const (
	// MarkObject marks an object value.
	MarkObject = '{'
	// MarkArray marks an array value.
	MarkArray = '['
	// MarkPrimitive marks a string, number, true, false or null value.
	MarkPrimitive = '"'
)

// ErrorPath is the filter key invoked once when the input is malformed.
// It can never collide with a document path, which always starts with a marker.
const ErrorPath = "E"

// Filter is invoked when the value at its path has been fully read.
// Returning false aborts the parse and marks the splitter failed.
type Filter func(v *Value) bool

// Filters maps paths to the filter fired when a value at that path closes.
type Filters map[string]Filter

// ObjectPath returns the path of an object reached from parent through name.
// An empty parent denotes the root.
func ObjectPath(parent, name string) string {
	return segment(parent, MarkObject, name)
}

// ArrayPath returns the path of an array reached from parent through name.
func ArrayPath(parent, name string) string {
	return segment(parent, MarkArray, name)
}

// PrimitivePath returns the path of a primitive reached from parent through name.
func PrimitivePath(parent, name string) string {
	return segment(parent, MarkPrimitive, name)
}

func segment(parent string, marker byte, name string) string {
	b := make([]byte, 0, len(parent)+1+len(name))
	b = append(b, parent...)
	b = append(b, marker)
	b = append(b, name...)
	return string(b)
}

// appendSegment is the allocation free variant used while scanning.
func appendSegment(dst []byte, parent string, marker byte, name string) []byte {
	dst = append(dst[:0], parent...)
	dst = append(dst, marker)
	return append(dst, name...)
}
