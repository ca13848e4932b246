//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package dispatcher

// options configures a Dispatcher.
type options struct {
	observer  Observer // observer receives diagnostics, a log observer when nil.
	sessionID string   // sessionID names the stream session, a random uuid when empty.
}

// Option is a function that configures the options.
type Option func(*options)

// newOptions creates a new options instance.
func newOptions(opt ...Option) options {
	opts := options{}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithObserver routes the dispatcher diagnostics to obs.
// Use Observers to combine several and NopObserver to silence them.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithSessionID names the stream session. The name is reported by ID and
// by the default log observer.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}
