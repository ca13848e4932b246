//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package client

import (
	"errors"
	"fmt"
)

// maxSequenceLen is the longest sequence number accepted, the base64url
// rendition of a 64 bit counter.
const maxSequenceLen = 11

// ErrInvalidSequenceNumber is returned for text that cannot be a sequence number.
var ErrInvalidSequenceNumber = errors.New("invalid sequence number")

// SequenceNumber marks the client position in the server update stream.
// The zero value means no position is known yet.
type SequenceNumber string

// ParseSequenceNumber validates s as base64url text of at most 11 characters.
func ParseSequenceNumber(s string) (SequenceNumber, error) {
	if s == "" || len(s) > maxSequenceLen {
		return "", fmt.Errorf("%w: length %d", ErrInvalidSequenceNumber, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isBase64URL(s[i]) {
			return "", fmt.Errorf("%w: byte %q at %d", ErrInvalidSequenceNumber, s[i], i)
		}
	}
	return SequenceNumber(s), nil
}

// IsZero reports whether no sequence number has been received.
func (s SequenceNumber) IsZero() bool {
	return s == ""
}

// String implements fmt.Stringer.
func (s SequenceNumber) String() string {
	return string(s)
}

func isBase64URL(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	return c == '-' || c == '_'
}
