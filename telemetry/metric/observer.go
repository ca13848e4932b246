//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"

	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	itelemetry "trpc.group/trpc-go/trpc-actionpacket-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-actionpacket-go/splitter"
)

// NewObserver returns a dispatcher.Observer that records stream metrics
// for streamID on the installed meter provider. Combine it with the log
// observer through dispatcher.Observers.
func NewObserver(streamID string) dispatcher.Observer {
	return &observer{ctx: context.Background(), id: streamID}
}

type observer struct {
	ctx context.Context
	id  string
}

func (o *observer) ChunkStarted([]byte) {
	itelemetry.IncChunk(o.ctx, o.id)
}

func (o *observer) SplitterReset(splitter.Status) {
	itelemetry.IncReset(o.ctx, o.id)
}

func (o *observer) FilterMatched(v *splitter.Value) {
	itelemetry.RecordMatch(o.ctx, o.id, v.Path(), v.Len())
}

func (o *observer) HandlerFailed(v *splitter.Value, err error) {
	itelemetry.IncFailure(o.ctx, o.id, v.Path(), err)
}

func (o *observer) ChunkFinished(consumed int, _ splitter.Status) {
	itelemetry.AddConsumedBytes(o.ctx, o.id, consumed)
}
