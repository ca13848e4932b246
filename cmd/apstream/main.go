//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command apstream replays captured action packet streams and serves live
// ones over HTTP.
//
//	apstream replay [flags] file...
//	apstream serve [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"trpc.group/trpc-go/trpc-actionpacket-go/internal/config"
	"trpc.group/trpc-go/trpc-actionpacket-go/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "replay":
		err = runReplay(ctx, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "apstream: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "apstream %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: apstream replay [flags] file...")
	fmt.Fprintln(w, "       apstream serve [flags]")
}

// commonFlags are shared by every command. Flags left unset keep the value
// from the config file.
type commonFlags struct {
	configPath string
	logLevel   string
	chunkSize  int
	maxPending int
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.IntVar(&c.chunkSize, "chunk-size", 0, "bytes read from a stream at a time")
	fs.IntVar(&c.maxPending, "max-pending", 0, "bound on the bytes retained for an open value, negative disables it")
}

// load reads the config file and applies the flags that were set.
func (c *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = c.logLevel
		case "chunk-size":
			cfg.Feed.ChunkSize = c.chunkSize
		case "max-pending":
			cfg.Feed.MaxPending = c.maxPending
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applyLog(cfg.Log)
	return cfg, nil
}

func applyLog(c config.LogConfig) {
	if c.JSON {
		log.Default = log.New(os.Stderr, true)
	}
	log.SetLevel(c.Level)
	log.SetTraceEnabled(c.Trace)
}
