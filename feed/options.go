//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package feed

const (
	defaultChunkSize  = 32 << 10
	defaultMaxPending = 16 << 20
)

type options struct {
	chunkSize  int
	maxPending int
}

// Option configures a Pump.
type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{
		chunkSize:  defaultChunkSize,
		maxPending: defaultMaxPending,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize <= 0 {
		o.chunkSize = defaultChunkSize
	}
	return o
}

// WithChunkSize sets how many bytes are read from the source at a time.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithMaxPending bounds the bytes retained for a value that is still open.
// A value of zero or less disables the bound.
func WithMaxPending(n int) Option {
	return func(o *options) {
		o.maxPending = n
	}
}
