//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter and metric names.
const (
	MeterNameStream = "trpc.actionpacket.go.stream"

	MetricChunks    = "actionpacket.stream.chunks"
	MetricBytes     = "actionpacket.stream.bytes"
	MetricMatches   = "actionpacket.stream.matches"
	MetricFailures  = "actionpacket.stream.failures"
	MetricResets    = "actionpacket.stream.resets"
	MetricValueSize = "actionpacket.stream.value.size"
)

var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	StreamMeter           metric.Meter          = MeterProvider.Meter(MeterNameStream)
	StreamMetricChunks    metric.Int64Counter   = noop.Int64Counter{}
	StreamMetricBytes     metric.Int64Counter   = noop.Int64Counter{}
	StreamMetricMatches   metric.Int64Counter   = noop.Int64Counter{}
	StreamMetricFailures  metric.Int64Counter   = noop.Int64Counter{}
	StreamMetricResets    metric.Int64Counter   = noop.Int64Counter{}
	StreamMetricValueSize metric.Int64Histogram = noop.Int64Histogram{}
)

// IncChunk counts one chunk handed to a dispatcher.
func IncChunk(ctx context.Context, streamID string) {
	StreamMetricChunks.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyStreamID, streamID)))
}

// AddConsumedBytes counts the bytes a dispatcher committed.
func AddConsumedBytes(ctx context.Context, streamID string, n int) {
	if n <= 0 {
		return
	}
	StreamMetricBytes.Add(ctx, int64(n), metric.WithAttributes(attribute.String(KeyStreamID, streamID)))
}

// RecordMatch counts a fired path and records the size of its value.
func RecordMatch(ctx context.Context, streamID, path string, size int) {
	attrs := metric.WithAttributes(
		attribute.String(KeyStreamID, streamID),
		attribute.String(KeyPath, path),
	)
	StreamMetricMatches.Add(ctx, 1, attrs)
	StreamMetricValueSize.Record(ctx, int64(size), attrs)
}

// IncFailure counts a rejected value or malformed input.
func IncFailure(ctx context.Context, streamID, path string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	StreamMetricFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(KeyStreamID, streamID),
		attribute.String(KeyPath, path),
		attribute.String(KeyErrorReason, reason),
	))
}

// IncReset counts a splitter reset between passes.
func IncReset(ctx context.Context, streamID string) {
	StreamMetricResets.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyStreamID, streamID)))
}
