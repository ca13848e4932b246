//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package splitter implements a resumable JSON tokenizer that fires path
// scoped filters as soon as the values they target are complete.
//
// The splitter is fed successive chunks of one document. ProcessChunk returns
// the number of bytes it committed; the caller keeps the rest and presents it
// again, followed by new input, on the next call. A filtered container that is
// still open is never committed, so its filter always receives the whole
// container in one Value while the splitter itself never copies the input.
package splitter

import "fmt"

// Status is a snapshot of the splitter flags.
type Status struct {
	// Starting is true until the first structural token has been committed.
	Starting bool
	// Finished is true once the root value has closed.
	Finished bool
	// Failed is true after malformed input or a filter rejection.
	Failed bool
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return fmt.Sprintf("starting=%t finished=%t failed=%t", s.Starting, s.Finished, s.Failed)
}

// maxDepth is the deepest container nesting accepted. Deeper input fails
// through ErrorPath.
const maxDepth = 512

// expectation is what the scanner accepts next.
type expectation int

const (
	expectValue expectation = iota
	expectValueOrEnd
	expectKeyOrEnd
	expectKey
	expectColon
	expectCommaOrEnd
	expectNothing
)

type frame struct {
	path  string
	array bool
	// start is the offset of the opening bracket in the current chunk. It is
	// only meaningful for the held frame and is rebased when a held frame
	// carries over to the next chunk.
	start int
}

// parseState is the live scanner state.
type parseState struct {
	stack   []frame
	expect  expectation
	name    string
	started bool
	// hold is the stack index of the open filtered container, or -1.
	hold int
}

func (p *parseState) reset() {
	p.stack = p.stack[:0]
	p.expect = expectValue
	p.name = ""
	p.started = false
	p.hold = -1
}

// checkpoint is the parse state at the last commit. Between two commits the
// stack only grows above the committed depth, so the committed stack is
// always a prefix of the live one and only its depth is recorded.
type checkpoint struct {
	depth   int
	expect  expectation
	name    string
	started bool
}

func (c *checkpoint) save(p *parseState) {
	c.depth = len(p.stack)
	c.expect = p.expect
	c.name = p.name
	c.started = p.started
}

func (c *checkpoint) restore(p *parseState) {
	p.stack = p.stack[:c.depth]
	p.expect = c.expect
	p.name = c.name
	p.started = c.started
	p.hold = -1
}

// Splitter is an incremental JSON tokenizer. It is not safe for concurrent use.
type Splitter struct {
	cur       parseState
	saved     checkpoint
	processed int64
	finished  bool
	failed    bool
	keyBuf    []byte
	// resume is the offset, relative to the head of the next chunk, where
	// scanning of a held container continues. Zero when nothing is held.
	resume int
	// partial is how far into the token at the resume point the last call
	// scanned before the chunk ended.
	partial int
	// scanned counts the bytes examined since Clear.
	scanned int64
}

// New creates a splitter ready for its first chunk.
func New() *Splitter {
	s := &Splitter{}
	s.Clear()
	return s
}

// Clear resets the splitter to the pre-parse state, dropping any partial
// value and the processed byte count.
func (s *Splitter) Clear() {
	s.cur.reset()
	s.saved.save(&s.cur)
	s.processed = 0
	s.finished = false
	s.failed = false
	s.resume = 0
	s.partial = 0
	s.scanned = 0
}

// IsStarting reports whether no structural content has been committed yet.
func (s *Splitter) IsStarting() bool {
	return !s.saved.started
}

// HasFinished reports whether the root value has closed.
func (s *Splitter) HasFinished() bool {
	return s.finished
}

// HasFailed reports whether the parse failed.
func (s *Splitter) HasFailed() bool {
	return s.failed
}

// Status returns the three splitter flags at once.
func (s *Splitter) Status() Status {
	return Status{Starting: s.IsStarting(), Finished: s.finished, Failed: s.failed}
}

// Processed returns the bytes committed since the last Clear.
func (s *Splitter) Processed() int64 {
	return s.processed
}

// ProcessChunk scans data, firing the filters whose values close inside it,
// and returns how many leading bytes of data were committed. The remaining
// bytes must be presented again at the head of the next chunk.
//
// While a filtered container stays open its bytes are not committed, but the
// scan position inside it is kept, so every byte is scanned once no matter how
// many chunks the container spans.
//
// Scanning stops right after the root value closes. A finished or failed
// splitter consumes nothing until Clear is called.
func (s *Splitter) ProcessChunk(filters Filters, data []byte) int {
	if s.finished || s.failed {
		return 0
	}
	sc := scanner{s: s, filters: filters, data: data}
	if s.resume+s.partial > len(data) {
		// The caller did not present the retained bytes again.
		s.saved.restore(&s.cur)
		s.resume, s.partial = 0, 0
	}
	sc.pos, sc.first, sc.partial = s.resume, s.resume, s.partial
	s.resume, s.partial = 0, 0
	low := sc.resumeAt(sc.pos)
	consumed := sc.run()
	sc.reach(sc.pos)
	if sc.high > low {
		s.scanned += int64(sc.high - low)
	}
	s.processed += int64(consumed)
	if s.finished || s.failed {
		return consumed
	}
	if s.cur.hold < 0 {
		// Roll back whatever was read past the last commit. Only a cut token
		// can lie past it.
		s.saved.restore(&s.cur)
		return consumed
	}
	for i := s.cur.hold; i < len(s.cur.stack); i++ {
		s.cur.stack[i].start -= consumed
	}
	s.resume = sc.pos - consumed
	return consumed
}
