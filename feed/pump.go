//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package feed drives a dispatcher from an io.Reader.
//
// The pump owns the caller side of the resumption contract: bytes a
// dispatcher does not consume are kept and presented again, followed by the
// next read, until the value they belong to closes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	itelemetry "trpc.group/trpc-go/trpc-actionpacket-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-actionpacket-go/log"
)

var (
	// ErrStreamFailed is returned when the stream was malformed or a value
	// was rejected by the target.
	ErrStreamFailed = errors.New("action packet stream failed")
	// ErrValueTooLarge is returned when an open value outgrows the pending bound.
	ErrValueTooLarge = errors.New("pending value exceeds limit")
)

// Stats summarizes one Run.
type Stats struct {
	// Chunks is the number of non empty reads.
	Chunks int64
	// Bytes is the number of bytes read.
	Bytes int64
	// Values is the number of top level values completed.
	Values int64
}

// Pump feeds one dispatcher. It is not safe for concurrent use.
type Pump struct {
	d    *dispatcher.Dispatcher
	opts options
}

// New creates a pump for d.
func New(d *dispatcher.Dispatcher, opts ...Option) *Pump {
	return &Pump{d: d, opts: newOptions(opts...)}
}

// Run reads r until EOF, handing every read to the dispatcher together with
// the bytes left over from the previous one. Back to back values in r are
// processed in order. Input that ends inside a value yields
// io.ErrUnexpectedEOF. There is no retry: the caller decides what to do
// with a failed stream.
func (p *Pump) Run(ctx context.Context, r io.Reader) (stats Stats, err error) {
	ctx, span := itelemetry.StartPumpSpan(ctx, p.d.ID(), p.opts.chunkSize)
	defer func() {
		itelemetry.EndPumpSpan(span, stats.Chunks, stats.Bytes, stats.Values, err)
	}()

	buf := make([]byte, 0, p.opts.chunkSize)
	read := make([]byte, p.opts.chunkSize)
	// offset is the stream position of buf[0].
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, rerr := r.Read(read)
		if n > 0 {
			stats.Chunks++
			stats.Bytes += int64(n)
			buf = append(buf, read[:n]...)
			rest, values, err := p.drain(buf, &offset)
			stats.Values += values
			if err != nil {
				return stats, err
			}
			// Keep the open value at the head of the buffer.
			buf = buf[:copy(buf, rest)]
			if limit := p.opts.maxPending; limit > 0 && len(buf) > limit {
				return stats, fmt.Errorf("%w: %d bytes pending, limit %d", ErrValueTooLarge, len(buf), limit)
			}
		}
		switch {
		case rerr == io.EOF:
			if !p.atBoundary(buf) {
				return stats, fmt.Errorf("stream %s: %w with %d bytes pending", p.d.ID(), io.ErrUnexpectedEOF, len(buf))
			}
			log.Debugf("stream %s: pump done, %d chunks, %d bytes, %d values",
				p.d.ID(), stats.Chunks, stats.Bytes, stats.Values)
			return stats, nil
		case rerr != nil:
			return stats, fmt.Errorf("stream %s: read: %w", p.d.ID(), rerr)
		}
	}
}

// drain offers data to the dispatcher until it stops consuming and returns
// the unconsumed tail. offset is advanced past every consumed byte.
func (p *Pump) drain(data []byte, offset *int64) (rest []byte, values int64, err error) {
	sp := p.d.Splitter()
	for len(data) > 0 {
		consumed := p.d.ProcessChunk(data)
		data = data[consumed:]
		*offset += int64(consumed)
		switch {
		case sp.HasFailed():
			return nil, values, fmt.Errorf("stream %s: %w at byte %d", p.d.ID(), ErrStreamFailed, *offset)
		case sp.HasFinished():
			values++
		default:
			return data, values, nil
		}
	}
	return data, values, nil
}

// atBoundary reports whether the input may end here: nothing is pending and
// no value is open.
func (p *Pump) atBoundary(pending []byte) bool {
	if len(pending) > 0 {
		return false
	}
	sp := p.d.Splitter()
	return sp.HasFinished() || sp.IsStarting()
}
