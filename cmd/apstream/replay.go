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
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-actionpacket-go/client"
	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	"trpc.group/trpc-go/trpc-actionpacket-go/feed"
	"trpc.group/trpc-go/trpc-actionpacket-go/internal/config"
	"trpc.group/trpc-go/trpc-actionpacket-go/log"
)

// replayResult is the outcome of one file.
type replayResult struct {
	file  string
	stats feed.Stats
	snap  client.Snapshot
	err   error
}

type replayTask struct {
	ctx     context.Context
	file    string
	cfg     *config.Config
	observe func(id string) dispatcher.Observer
	result  *replayResult
	wg      *sync.WaitGroup
}

func runReplay(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	workers := fs.Int("workers", 0, "number of files replayed concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Replay.Workers = *workers
	}
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}

	shutdown, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Warnf("telemetry shutdown: %v", err)
		}
	}()

	results, err := replayFiles(ctx, cfg, fs.Args(), observerFactory(cfg.Telemetry))
	if err != nil {
		return err
	}
	return report(stdout, results)
}

// replayFiles replays every file on its own dispatcher, cfg.Replay.Workers
// at a time. Results keep the order of files.
func replayFiles(ctx context.Context, cfg *config.Config, files []string, observe func(id string) dispatcher.Observer) ([]replayResult, error) {
	pool, err := ants.NewPoolWithFunc(cfg.Replay.Workers, func(args any) {
		task, ok := args.(*replayTask)
		if !ok {
			panic("replay pool args type error")
		}
		defer task.wg.Done()
		*task.result = replayFile(task.ctx, task.cfg, task.file, task.observe)
	})
	if err != nil {
		return nil, fmt.Errorf("create replay pool: %w", err)
	}
	defer pool.Release()

	results := make([]replayResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		task := &replayTask{ctx: ctx, file: file, cfg: cfg, observe: observe, result: &results[i], wg: &wg}
		if err := pool.Invoke(task); err != nil {
			wg.Done()
			results[i] = replayResult{file: file, err: fmt.Errorf("schedule: %w", err)}
		}
	}
	wg.Wait()
	return results, nil
}

func replayFile(ctx context.Context, cfg *config.Config, file string, observe func(id string) dispatcher.Observer) replayResult {
	res := replayResult{file: file}
	f, err := os.Open(file)
	if err != nil {
		res.err = err
		return res
	}
	defer f.Close()

	id := filepath.Base(file)
	state := client.NewState()
	d := dispatcher.New(state, dispatcher.WithSessionID(id), dispatcher.WithObserver(observe(id)))
	p := feed.New(d, feed.WithChunkSize(cfg.Feed.ChunkSize), feed.WithMaxPending(cfg.Feed.MaxPending))
	res.stats, res.err = p.Run(ctx, f)
	res.snap = state.Snapshot()
	return res
}

// report prints one line per file and returns an error when any failed.
func report(w io.Writer, results []replayResult) error {
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s\tFAILED\t%v\n", r.file, r.err)
			continue
		}
		fmt.Fprintf(w, "%s\tok\tvalues=%d bytes=%d nodes=%d users=%d sn=%s more=%t\n",
			r.file, r.stats.Values, r.stats.Bytes, len(r.snap.Nodes), len(r.snap.Users),
			r.snap.SequenceNumber, r.snap.MorePending)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d streams failed", failed, len(results))
	}
	return nil
}
