//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	"trpc.group/trpc-go/trpc-actionpacket-go/internal/config"
	"trpc.group/trpc-go/trpc-actionpacket-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-actionpacket-go/telemetry/trace"
)

// setupTelemetry starts the exporters enabled in c and returns their
// shutdown function.
func setupTelemetry(ctx context.Context, c config.TelemetryConfig) (func() error, error) {
	var cleanups []func() error
	shutdown := func() error {
		var errs []error
		for _, fn := range cleanups {
			errs = append(errs, fn())
		}
		return errors.Join(errs...)
	}

	if c.Traces {
		opts := []trace.Option{trace.WithProtocol(c.Protocol)}
		if c.Endpoint != "" {
			opts = append(opts, trace.WithEndpoint(c.Endpoint))
		}
		clean, err := trace.Start(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}
		cleanups = append(cleanups, clean)
	}
	if c.Metrics {
		opts := []metric.Option{metric.WithProtocol(c.Protocol)}
		if c.Endpoint != "" {
			opts = append(opts, metric.WithEndpoint(c.Endpoint))
		}
		mp, err := metric.NewMeterProvider(ctx, opts...)
		if err != nil {
			_ = shutdown()
			return nil, fmt.Errorf("start metrics: %w", err)
		}
		if err := metric.InitMeterProvider(mp); err != nil {
			_ = shutdown()
			return nil, err
		}
		cleanups = append(cleanups, func() error { return mp.Shutdown(context.Background()) })
	}
	return shutdown, nil
}

// observerFactory returns the dispatcher observer of a stream: the log
// observer, plus the metric observer when metrics are exported.
func observerFactory(c config.TelemetryConfig) func(id string) dispatcher.Observer {
	return func(id string) dispatcher.Observer {
		if !c.Metrics {
			return dispatcher.NewLogObserver(id)
		}
		return dispatcher.Observers(dispatcher.NewLogObserver(id), metric.NewObserver(id))
	}
}
