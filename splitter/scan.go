//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package splitter

import "bytes"

// step tells the scan loop how to continue after a token handler.
type step int

const (
	// stepNext means the token was consumed and scanning goes on.
	stepNext step = iota
	// stepMore means the token is cut by the end of the chunk.
	stepMore
	// stepStop means the root closed or the parse failed.
	stepStop
)

// scanner holds the per-call cursor over one chunk.
type scanner struct {
	s         *Splitter
	filters   Filters
	data      []byte
	pos       int
	committed int
	dirty     bool
	// first is where this call started scanning and partial how far into
	// the token at first a previous call already scanned.
	first   int
	partial int
	// high is the furthest offset examined.
	high int
}

func (sc *scanner) run() int {
	for sc.pos < len(sc.data) {
		c := sc.data[sc.pos]
		if isSpace(c) {
			sc.pos++
			sc.commit()
			continue
		}
		var st step
		switch sc.s.cur.expect {
		case expectValue:
			st = sc.handleValue(c)
		case expectValueOrEnd:
			if c == ']' {
				st = sc.closeContainer(true)
			} else {
				st = sc.handleValue(c)
			}
		case expectKeyOrEnd:
			if c == '}' {
				st = sc.closeContainer(false)
			} else {
				st = sc.handleKey(c)
			}
		case expectKey:
			st = sc.handleKey(c)
		case expectColon:
			st = sc.handleColon(c)
		case expectCommaOrEnd:
			st = sc.handleCommaOrEnd(c)
		default:
			st = sc.fail()
		}
		if st != stepNext {
			break
		}
	}
	return sc.committed
}

// commit marks everything before pos as consumed unless a filtered
// container is still open.
func (sc *scanner) commit() {
	if sc.s.cur.hold >= 0 {
		return
	}
	if sc.dirty {
		sc.s.saved.save(&sc.s.cur)
		sc.dirty = false
	}
	sc.committed = sc.pos
}

func (sc *scanner) handleValue(c byte) step {
	switch c {
	case '{':
		return sc.openContainer(false)
	case '[':
		return sc.openContainer(true)
	case '"':
		end := sc.stringEnd()
		switch end {
		case incomplete:
			return stepMore
		case malformed:
			return sc.fail()
		}
		return sc.primitive(end)
	case 't', 'f', 'n':
		end := literalEnd(sc.data, sc.pos)
		switch end {
		case incomplete:
			return stepMore
		case malformed:
			return sc.fail()
		}
		return sc.primitive(end)
	default:
		if c != '-' && !isDigit(c) {
			return sc.fail()
		}
		end := numberEnd(sc.data, sc.resumeAt(sc.pos))
		if end == len(sc.data) {
			// A number is only complete once a delimiter follows it.
			sc.cut(end)
			return stepMore
		}
		if !validNumber(sc.data[sc.pos:end]) {
			return sc.fail()
		}
		return sc.primitive(end)
	}
}

func (sc *scanner) handleKey(c byte) step {
	if c != '"' {
		return sc.fail()
	}
	end := sc.stringEnd()
	switch end {
	case incomplete:
		return stepMore
	case malformed:
		return sc.fail()
	}
	cur := &sc.s.cur
	if cur.hold < 0 {
		cur.name = string(sc.data[sc.pos+1 : end-1])
	}
	cur.expect = expectColon
	sc.dirty = true
	sc.pos = end
	sc.commit()
	return stepNext
}

func (sc *scanner) handleColon(c byte) step {
	if c != ':' {
		return sc.fail()
	}
	sc.s.cur.expect = expectValue
	sc.dirty = true
	sc.pos++
	sc.commit()
	return stepNext
}

func (sc *scanner) handleCommaOrEnd(c byte) step {
	cur := &sc.s.cur
	top := cur.stack[len(cur.stack)-1]
	switch {
	case c == ',' && top.array:
		cur.expect = expectValue
	case c == ',':
		cur.expect = expectKey
	case c == ']' && top.array:
		return sc.closeContainer(true)
	case c == '}' && !top.array:
		return sc.closeContainer(false)
	default:
		return sc.fail()
	}
	sc.dirty = true
	sc.pos++
	sc.commit()
	return stepNext
}

func (sc *scanner) openContainer(array bool) step {
	cur := &sc.s.cur
	marker := byte(MarkObject)
	if array {
		marker = MarkArray
	}
	if len(cur.stack) >= maxDepth {
		return sc.fail()
	}
	f := frame{array: array, start: sc.pos}
	held := false
	if cur.hold < 0 {
		f.path = sc.childPath(marker)
		if len(cur.stack) > 0 {
			_, held = sc.filters[f.path]
		}
	}
	cur.stack = append(cur.stack, f)
	if held {
		cur.hold = len(cur.stack) - 1
	}
	cur.name = ""
	cur.started = true
	if array {
		cur.expect = expectValueOrEnd
	} else {
		cur.expect = expectKeyOrEnd
	}
	sc.dirty = true
	sc.pos++
	sc.commit()
	return stepNext
}

func (sc *scanner) closeContainer(array bool) step {
	cur := &sc.s.cur
	idx := len(cur.stack) - 1
	top := cur.stack[idx]
	if top.array != array {
		return sc.fail()
	}
	closing := sc.pos
	end := sc.pos + 1
	cur.stack = cur.stack[:idx]
	cur.name = ""

	var (
		filter Filter
		raw    []byte
		start  int
	)
	switch {
	case cur.hold == idx:
		cur.hold = -1
		filter = sc.filters[top.path]
		raw, start = sc.data[top.start:end], top.start
	case cur.hold < 0 && idx == 0:
		// The root is never held: its filter is a close hook.
		filter = sc.filters[top.path]
		raw, start = sc.data[closing:end], closing
	}

	if idx == 0 {
		cur.expect = expectNothing
	} else {
		cur.expect = expectCommaOrEnd
	}
	sc.dirty = true
	sc.pos = end
	sc.commit()

	if filter != nil && !sc.fire(filter, top.path, raw, start) {
		return stepStop
	}
	if idx == 0 {
		sc.s.finished = true
		return stepStop
	}
	return stepNext
}

// primitive completes a scalar spanning [pos, end).
func (sc *scanner) primitive(end int) step {
	cur := &sc.s.cur
	start := sc.pos
	var (
		filter Filter
		path   string
	)
	if cur.hold < 0 {
		sc.s.keyBuf = sc.appendChildPath(sc.s.keyBuf, MarkPrimitive)
		if f, ok := sc.filters[string(sc.s.keyBuf)]; ok {
			filter, path = f, string(sc.s.keyBuf)
		}
	}
	root := len(cur.stack) == 0
	cur.name = ""
	cur.started = true
	if root {
		cur.expect = expectNothing
	} else {
		cur.expect = expectCommaOrEnd
	}
	sc.dirty = true
	sc.pos = end
	sc.commit()

	if filter != nil && !sc.fire(filter, path, sc.data[start:end], start) {
		return stepStop
	}
	if root {
		sc.s.finished = true
		return stepStop
	}
	return stepNext
}

func (sc *scanner) childPath(marker byte) string {
	sc.s.keyBuf = sc.appendChildPath(sc.s.keyBuf, marker)
	return string(sc.s.keyBuf)
}

func (sc *scanner) appendChildPath(dst []byte, marker byte) []byte {
	cur := &sc.s.cur
	parent := ""
	if n := len(cur.stack); n > 0 {
		parent = cur.stack[n-1].path
	}
	return appendSegment(dst, parent, marker, cur.name)
}

func (sc *scanner) fire(f Filter, path string, raw []byte, start int) bool {
	v := Value{path: path, raw: raw, offset: sc.s.processed + int64(start)}
	if f(&v) {
		return true
	}
	sc.s.failed = true
	return false
}

// stringEnd scans the string opening at pos, skipping what a previous call
// already scanned of it.
func (sc *scanner) stringEnd() int {
	end, next := stringEnd(sc.data, sc.resumeAt(sc.pos+1))
	if end == incomplete {
		sc.cut(next)
	}
	return end
}

// resumeAt returns where scanning of the token at pos continues.
func (sc *scanner) resumeAt(def int) int {
	if sc.pos == sc.first && sc.partial > 0 {
		return sc.pos + sc.partial
	}
	return def
}

// cut records that the token at pos was scanned up to next before the chunk
// ended.
func (sc *scanner) cut(next int) {
	sc.s.partial = next - sc.pos
	sc.reach(next)
}

func (sc *scanner) reach(off int) {
	if off > sc.high {
		sc.high = off
	}
}

// fail reports malformed input at pos through the error filter.
func (sc *scanner) fail() step {
	if f, ok := sc.filters[ErrorPath]; ok {
		v := Value{path: ErrorPath, raw: sc.data[sc.pos:], offset: sc.s.processed + int64(sc.pos)}
		f(&v)
	}
	sc.s.failed = true
	return stepStop
}

const (
	incomplete = -1
	malformed  = -2
)

// stringEnd returns the offset just past the closing quote of a string whose
// body is scanned from data[from]. On incomplete input next is where a later
// scan may continue without splitting an escape.
func stringEnd(data []byte, from int) (end, next int) {
	for j := from; j < len(data); j++ {
		switch c := data[j]; {
		case c == '\\':
			if j+1 == len(data) {
				return incomplete, j
			}
			j++
		case c == '"':
			return j + 1, 0
		case c < 0x20:
			return malformed, 0
		}
	}
	return incomplete, len(data)
}

var literals = [...]struct {
	first byte
	text  []byte
}{
	{'t', []byte("true")},
	{'f', []byte("false")},
	{'n', []byte("null")},
}

func literalEnd(data []byte, i int) int {
	for _, lit := range literals {
		if lit.first != data[i] {
			continue
		}
		rest := data[i:]
		if len(rest) < len(lit.text) {
			if bytes.HasPrefix(lit.text, rest) {
				return incomplete
			}
			return malformed
		}
		if !bytes.HasPrefix(rest, lit.text) {
			return malformed
		}
		return i + len(lit.text)
	}
	return malformed
}

func numberEnd(data []byte, from int) int {
	j := from
	for j < len(data) && isNumberByte(data[j]) {
		j++
	}
	return j
}

// validNumber checks b against the JSON number grammar.
func validNumber(b []byte) bool {
	i := 0
	if i < len(b) && b[i] == '-' {
		i++
	}
	switch {
	case i == len(b):
		return false
	case b[i] == '0':
		i++
	case b[i] >= '1' && b[i] <= '9':
		i = skipDigits(b, i)
	default:
		return false
	}
	if i < len(b) && b[i] == '.' {
		d := i + 1
		if i = skipDigits(b, d); i == d {
			return false
		}
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		d := i
		if i = skipDigits(b, d); i == d {
			return false
		}
	}
	return i == len(b)
}

func skipDigits(b []byte, i int) int {
	for i < len(b) && isDigit(b[i]) {
		i++
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumberByte(c byte) bool {
	return isDigit(c) || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
