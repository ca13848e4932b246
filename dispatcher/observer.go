//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package dispatcher

import (
	"trpc.group/trpc-go/trpc-actionpacket-go/log"
	"trpc.group/trpc-go/trpc-actionpacket-go/splitter"
)

// headLen bounds how much of a chunk is echoed by trace logging.
const headLen = 100

// Observer receives the diagnostics of a Dispatcher. Observer methods run
// inline in ProcessChunk and cannot influence the parse outcome.
type Observer interface {
	// ChunkStarted is called before a chunk is handed to the splitter.
	ChunkStarted(data []byte)
	// SplitterReset is called when a finished or failed pass is cleared.
	SplitterReset(prev splitter.Status)
	// FilterMatched is called when a path fires, before the target is updated.
	FilterMatched(v *splitter.Value)
	// HandlerFailed is called when a value is rejected or the input is malformed.
	HandlerFailed(v *splitter.Value, err error)
	// ChunkFinished is called once the splitter returned.
	ChunkFinished(consumed int, st splitter.Status)
}

// NewLogObserver returns an Observer writing to the log package, tagged
// with the stream session id.
func NewLogObserver(sessionID string) Observer {
	return &logObserver{id: sessionID}
}

type logObserver struct {
	id string
}

func (o *logObserver) ChunkStarted(data []byte) {
	log.Debugf("stream %s: processing chunk of %d bytes", o.id, len(data))
	if log.TraceEnabled() {
		head := data
		if len(head) > headLen {
			head = head[:headLen]
		}
		log.Tracef("stream %s: chunk starts with %q", o.id, head)
	}
}

func (o *logObserver) SplitterReset(prev splitter.Status) {
	log.Debugf("stream %s: resetting splitter (%s)", o.id, prev)
}

func (o *logObserver) FilterMatched(v *splitter.Value) {
	log.Debugf("stream %s: matched %s", o.id, v)
}

func (o *logObserver) HandlerFailed(v *splitter.Value, err error) {
	log.Errorf("stream %s: rejected %s: %v", o.id, v, err)
}

func (o *logObserver) ChunkFinished(consumed int, st splitter.Status) {
	log.Debugf("stream %s: consumed %d bytes, %s", o.id, consumed, st)
}

// NopObserver discards all diagnostics.
type NopObserver struct{}

// ChunkStarted implements Observer.
func (NopObserver) ChunkStarted([]byte) {}

// SplitterReset implements Observer.
func (NopObserver) SplitterReset(splitter.Status) {}

// FilterMatched implements Observer.
func (NopObserver) FilterMatched(*splitter.Value) {}

// HandlerFailed implements Observer.
func (NopObserver) HandlerFailed(*splitter.Value, error) {}

// ChunkFinished implements Observer.
func (NopObserver) ChunkFinished(int, splitter.Status) {}

// Observers fans diagnostics out to every non nil observer, in order.
func Observers(obs ...Observer) Observer {
	m := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

type multiObserver []Observer

func (m multiObserver) ChunkStarted(data []byte) {
	for _, o := range m {
		o.ChunkStarted(data)
	}
}

func (m multiObserver) SplitterReset(prev splitter.Status) {
	for _, o := range m {
		o.SplitterReset(prev)
	}
}

func (m multiObserver) FilterMatched(v *splitter.Value) {
	for _, o := range m {
		o.FilterMatched(v)
	}
}

func (m multiObserver) HandlerFailed(v *splitter.Value, err error) {
	for _, o := range m {
		o.HandlerFailed(v, err)
	}
}

func (m multiObserver) ChunkFinished(consumed int, st splitter.Status) {
	for _, o := range m {
		o.ChunkFinished(consumed, st)
	}
}
