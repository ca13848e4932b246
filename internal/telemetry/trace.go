//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the process wide OpenTelemetry handles used by the
// stream packages. Everything defaults to noop until the public telemetry
// packages install real providers.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// grpcDial is a package-level variable to allow test injection of a custom dialer.
var grpcDial = grpc.Dial

// telemetry service constants.
const (
	ServiceName      = "apstream"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-actionpacket"
	InstrumentName   = "trpc.actionpacket.go"

	SpanNamePump = "actionpacket.pump"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// Attribute keys.
const (
	KeyStreamID    = "actionpacket.stream.id"
	KeyPath        = "actionpacket.path"
	KeyChunkSize   = "actionpacket.chunk.size"
	KeyChunks      = "actionpacket.chunks"
	KeyBytes       = "actionpacket.bytes"
	KeyValues      = "actionpacket.values"
	KeyErrorType   = "error.type"
	KeyErrorReason = "actionpacket.error.reason"

	ValueDefaultErrorType = "actionpacket_error"
)

// Tracer is the tracer used by the stream packages.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(InstrumentName)

// StartPumpSpan starts the span covering one stream pump run.
func StartPumpSpan(ctx context.Context, streamID string, chunkSize int) (context.Context, trace.Span) {
	return Tracer.Start(ctx, SpanNamePump, trace.WithAttributes(
		attribute.String(KeyStreamID, streamID),
		attribute.Int(KeyChunkSize, chunkSize),
	))
}

// EndPumpSpan records the run totals and err on span and ends it.
func EndPumpSpan(span trace.Span, chunks, bytes, values int64, err error) {
	span.SetAttributes(
		attribute.Int64(KeyChunks, chunks),
		attribute.Int64(KeyBytes, bytes),
		attribute.Int64(KeyValues, values),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(KeyErrorType, ValueDefaultErrorType))
		span.RecordError(err)
	}
	span.End()
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpcDial(endpoint,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
