//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package dispatcher applies a server pushed action packet stream to a
// session state as the stream arrives.
//
// A Dispatcher owns one splitter. Each ProcessChunk call advances the parse by
// one chunk and synchronously invokes the Target methods whose values closed
// inside that chunk, in document order. Failures are never returned: they are
// carried by the splitter failed flag and the next call starts a fresh pass.
package dispatcher

import (
	"errors"
	"reflect"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-actionpacket-go/splitter"
)

// ErrMalformed is reported to the observer when the stream cannot be tokenized.
var ErrMalformed = errors.New("malformed action packet stream")

// Dispatcher routes one action packet stream to a Target.
// It is not safe for concurrent use.
type Dispatcher struct {
	target   Target
	splitter *splitter.Splitter
	observer Observer
	id       string
}

// New creates a dispatcher for one stream. target may be nil, or a nil
// pointer of a Target implementation, in which case the stream is parsed and
// drained without side effects.
func New(target Target, opts ...Option) *Dispatcher {
	if isNil(target) {
		target = nil
	}
	o := newOptions(opts...)
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}
	if o.observer == nil {
		o.observer = NewLogObserver(o.sessionID)
	}
	return &Dispatcher{
		target:   target,
		splitter: splitter.New(),
		observer: o.observer,
		id:       o.sessionID,
	}
}

// ID returns the stream session id.
func (d *Dispatcher) ID() string {
	return d.id
}

// Splitter exposes the owned splitter for status inspection.
func (d *Dispatcher) Splitter() *splitter.Splitter {
	return d.splitter
}

// ProcessChunk feeds data to the stream and returns how many leading bytes
// were consumed. Unconsumed bytes belong to a value that is still open and
// must be presented again, followed by new input, on the next call.
//
// A pass that finished or failed is cleared first, so consecutive top level
// values on the same stream are parsed independently.
func (d *Dispatcher) ProcessChunk(data []byte) int {
	d.observer.ChunkStarted(data)
	if d.splitter.HasFinished() || d.splitter.HasFailed() {
		d.observer.SplitterReset(d.splitter.Status())
		d.splitter.Clear()
	}
	// The table is rebuilt per call so that handlers only ever bind the
	// target this call was made for.
	consumed := d.splitter.ProcessChunk(d.filters(d.target), data)
	d.observer.ChunkFinished(consumed, d.splitter.Status())
	return consumed
}

func isNil(target Target) bool {
	if target == nil {
		return true
	}
	v := reflect.ValueOf(target)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (d *Dispatcher) filters(target Target) splitter.Filters {
	obs := d.observer
	apply := func(v *splitter.Value, fn func(Target) error) bool {
		obs.FilterMatched(v)
		if target == nil {
			return true
		}
		if err := fn(target); err != nil {
			obs.HandlerFailed(v, err)
			return false
		}
		return true
	}
	hook := func(v *splitter.Value) bool {
		obs.FilterMatched(v)
		return true
	}

	return splitter.Filters{
		PathNotifyURL: func(v *splitter.Value) bool {
			return apply(v, func(t Target) error {
				t.SetNotifyURL(v.Str())
				return nil
			})
		},
		PathMorePending: func(v *splitter.Value) bool {
			return apply(v, func(t Target) error {
				t.SetMorePending(v.Int() == 1)
				return nil
			})
		},
		PathSequenceNumber: func(v *splitter.Value) bool {
			return apply(v, func(t Target) error {
				return t.UpdateSequenceNumber(v)
			})
		},
		PathTree: func(v *splitter.Value) bool {
			return apply(v, func(t Target) error {
				return t.ReadTree(v)
			})
		},
		PathUsers: func(v *splitter.Value) bool {
			return apply(v, func(t Target) error {
				return t.ReadUsers(v, true)
			})
		},
		PathActions: func(v *splitter.Value) bool {
			return apply(v, func(t Target) error {
				return t.ProcessActions(v)
			})
		},
		PathObjectEnd: hook,
		PathArrayEnd:  hook,
		PathError: func(v *splitter.Value) bool {
			obs.HandlerFailed(v, ErrMalformed)
			return false
		},
	}
}
