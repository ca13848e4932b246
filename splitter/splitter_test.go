//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Path   string
	Raw    string
	Offset int64
}

// recorder returns filters for paths that append what they see to events.
func recorder(events *[]event, paths ...string) Filters {
	filters := make(Filters, len(paths))
	for _, p := range paths {
		filters[p] = func(v *Value) bool {
			*events = append(*events, event{Path: v.Path(), Raw: string(v.Raw()), Offset: v.Offset()})
			return true
		}
	}
	return filters
}

// feedBytewise presents doc one extra byte at a time, re-presenting the
// unconsumed tail like a network reader would.
func feedBytewise(t *testing.T, s *Splitter, filters Filters, doc string) int {
	t.Helper()
	var pending []byte
	total := 0
	for i := 0; i < len(doc); i++ {
		pending = append(pending, doc[i])
		n := s.ProcessChunk(filters, pending)
		require.LessOrEqual(t, n, len(pending))
		total += n
		pending = append(pending[:0], pending[n:]...)
		if s.HasFinished() || s.HasFailed() {
			break
		}
	}
	return total
}

func TestProcessChunk_TopLevelScalars(t *testing.T) {
	doc := `{"w":"https://x","sn":"AbC123","ir":1}`
	var events []event
	s := New()
	n := s.ProcessChunk(recorder(&events, `{"w`, `{"sn`, `{"ir`), []byte(doc))

	assert.Equal(t, len(doc), n)
	assert.True(t, s.HasFinished())
	assert.False(t, s.HasFailed())
	assert.Equal(t, []event{
		{Path: `{"w`, Raw: `"https://x"`, Offset: 5},
		{Path: `{"sn`, Raw: `"AbC123"`, Offset: 22},
		{Path: `{"ir`, Raw: `1`, Offset: 36},
	}, events)
	assert.Equal(t, int64(len(doc)), s.Processed())
}

func TestProcessChunk_ContainerFiresOnceWhole(t *testing.T) {
	doc := `{"t":[{"h":"n1"},{"h":"n2"}]}`
	var events []event
	s := New()
	n := s.ProcessChunk(recorder(&events, `{[t`, `{[t{"h`), []byte(doc))

	assert.Equal(t, len(doc), n)
	require.Len(t, events, 1, "nested filters are owned by the enclosing container")
	assert.Equal(t, `{[t`, events[0].Path)
	assert.Equal(t, `[{"h":"n1"},{"h":"n2"}]`, events[0].Raw)
	assert.Equal(t, int64(5), events[0].Offset)
}

func TestProcessChunk_ElementFiltersWithoutHeldParent(t *testing.T) {
	doc := `{"t":[{"h":"n1"},{"h":"n2"}]}`
	var events []event
	s := New()
	s.ProcessChunk(recorder(&events, `{[t{"h`), []byte(doc))

	assert.Equal(t, []event{
		{Path: `{[t{"h`, Raw: `"n1"`, Offset: 11},
		{Path: `{[t{"h`, Raw: `"n2"`, Offset: 22},
	}, events)
}

func TestProcessChunk_HeldContainerIsNotCommitted(t *testing.T) {
	var events []event
	filters := recorder(&events, `{[t`, `{"sn`)
	s := New()

	first := `{"sn":"a","t":[{"h":"n1"},`
	n := s.ProcessChunk(filters, []byte(first))
	assert.Equal(t, len(`{"sn":"a","t":`), n)
	assert.False(t, s.HasFinished())
	assert.False(t, s.HasFailed())
	require.Len(t, events, 1)

	rest := first[n:] + `{"h":"n2"}]}`
	n2 := s.ProcessChunk(filters, []byte(rest))
	assert.Equal(t, len(rest), n2)
	assert.True(t, s.HasFinished())
	require.Len(t, events, 2)
	assert.Equal(t, `[{"h":"n1"},{"h":"n2"}]`, events[1].Raw)
	assert.Equal(t, int64(14), events[1].Offset)
}

func TestProcessChunk_TruncatedScalarResumes(t *testing.T) {
	var events []event
	filters := recorder(&events, `{"sn`)
	s := New()

	n := s.ProcessChunk(filters, []byte(`{"sn":"Ab`))
	assert.Equal(t, 6, n)
	assert.False(t, s.HasFinished())
	assert.False(t, s.HasFailed())
	assert.False(t, s.IsStarting())
	assert.Empty(t, events)

	n = s.ProcessChunk(filters, []byte(`"Ab`+`C123"}`))
	assert.Equal(t, 9, n)
	assert.True(t, s.HasFinished())
	assert.Equal(t, []event{{Path: `{"sn`, Raw: `"AbC123"`, Offset: 6}}, events)
	assert.Equal(t, int64(15), s.Processed())
}

func TestProcessChunk_BytewiseMatchesOneShot(t *testing.T) {
	docs := []string{
		`{"w":"https://x","sn":"AbC123","ir":1}`,
		`{"t":[{"h":"n1","p":"r","s":12},{"h":"n2"}],"sn":"q"}`,
		` { "a" : [ {"a":"t","t":{"f":[]}} , {"a":"d","n":"x"} ] , "ir" : 0 , "u":[{"u":"me"}]}`,
		`{"w":"a\"b\\","x":[true,false,null,-1.5e3,{"y":[[]]}],"sn":"z"}`,
		`[{"a":1},{"a":2.25},{"b":"c"}]`,
	}
	paths := []string{`{"w`, `{"sn`, `{"ir`, `{[t`, `{[a`, `{[u`, `{`, `[`, `[{"a`, ErrorPath}
	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			var whole []event
			s := New()
			n := s.ProcessChunk(recorder(&whole, paths...), []byte(doc))
			require.Equal(t, len(doc), n)
			require.True(t, s.HasFinished())

			var pieces []event
			s2 := New()
			total := feedBytewise(t, s2, recorder(&pieces, paths...), doc)
			assert.Equal(t, len(doc), total)
			assert.True(t, s2.HasFinished())
			assert.Equal(t, whole, pieces)
		})
	}
}

func TestProcessChunk_SplitAtEveryOffset(t *testing.T) {
	doc := `{"sn":"AbC123","t":[{"h":"n1"},{"h":"n2"}],"ir":1}`
	paths := []string{`{"sn`, `{[t`, `{"ir`}
	var whole []event
	New().ProcessChunk(recorder(&whole, paths...), []byte(doc))

	for k := 0; k <= len(doc); k++ {
		var events []event
		filters := recorder(&events, paths...)
		s := New()
		n := s.ProcessChunk(filters, []byte(doc[:k]))
		require.LessOrEqual(t, n, k)
		n2 := s.ProcessChunk(filters, []byte(doc[n:]))
		assert.Equal(t, len(doc)-n, n2, "split at %d", k)
		assert.Equal(t, whole, events, "split at %d", k)
	}
}

func TestProcessChunk_RootCloseHooks(t *testing.T) {
	var events []event
	s := New()
	s.ProcessChunk(recorder(&events, `{`, `[`), []byte(`{"a":[1,2]}`))
	assert.Equal(t, []event{{Path: `{`, Raw: `}`, Offset: 10}}, events)

	events = nil
	s = New()
	s.ProcessChunk(recorder(&events, `{`, `[`), []byte(`[{"a":1}]`))
	assert.Equal(t, []event{{Path: `[`, Raw: `]`, Offset: 8}}, events)
}

func TestProcessChunk_RootPrimitive(t *testing.T) {
	var events []event
	s := New()
	n := s.ProcessChunk(recorder(&events, `"`), []byte(`"abc" `))
	assert.Equal(t, 5, n)
	assert.True(t, s.HasFinished())
	assert.Equal(t, []event{{Path: `"`, Raw: `"abc"`}}, events)
}

func TestProcessChunk_StopsAfterRoot(t *testing.T) {
	doc := `{"a":1} {"b":2}`
	s := New()
	n := s.ProcessChunk(nil, []byte(doc))
	assert.Equal(t, 7, n)
	assert.True(t, s.HasFinished())

	assert.Zero(t, s.ProcessChunk(nil, []byte(doc[n:])), "finished splitter consumes nothing")

	s.Clear()
	assert.Zero(t, s.Processed())
	n2 := s.ProcessChunk(nil, []byte(doc[n:]))
	assert.Equal(t, len(doc)-n, n2)
	assert.True(t, s.HasFinished())
}

func TestProcessChunk_Whitespace(t *testing.T) {
	s := New()
	assert.Equal(t, 3, s.ProcessChunk(nil, []byte(" \n\t")))
	assert.True(t, s.IsStarting())

	assert.Equal(t, 2, s.ProcessChunk(nil, []byte(" {")))
	assert.False(t, s.IsStarting())
}

func TestProcessChunk_IncompleteTokens(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		consumed int
	}{
		{name: "number needs delimiter", in: `{"ir":1`, consumed: 6},
		{name: "literal prefix", in: `{"x":tr`, consumed: 5},
		{name: "key prefix", in: `{"s`, consumed: 1},
		{name: "escape at end", in: `{"w":"a\`, consumed: 5},
		{name: "root string", in: `"ab`, consumed: 0},
		{name: "empty", in: ``, consumed: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			assert.Equal(t, tc.consumed, s.ProcessChunk(nil, []byte(tc.in)))
			assert.False(t, s.HasFinished())
			assert.False(t, s.HasFailed())
		})
	}
}

func TestProcessChunk_Malformed(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		consumed int
		errAt    int64
	}{
		{name: "wrong close", in: `{"sn":"x"]`, consumed: 9, errAt: 9},
		{name: "bad literal", in: `{"x":trUe}`, consumed: 5, errAt: 5},
		{name: "leading zero", in: `{"x":01}`, consumed: 5, errAt: 5},
		{name: "lone minus", in: `{"x":-}`, consumed: 5, errAt: 5},
		{name: "trailing comma", in: `{"a":1,}`, consumed: 7, errAt: 7},
		{name: "missing colon", in: `{"a" 1}`, consumed: 5, errAt: 5},
		{name: "control char", in: "{\"a\":\"x\ny\"}", consumed: 5, errAt: 5},
		{name: "garbage", in: `E`, consumed: 0, errAt: 0},
		{name: "mismatched", in: `{"a":[1}`, consumed: 7, errAt: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var events []event
			s := New()
			n := s.ProcessChunk(recorder(&events, ErrorPath), []byte(tc.in))
			assert.Equal(t, tc.consumed, n)
			assert.True(t, s.HasFailed())
			assert.False(t, s.HasFinished())
			require.Len(t, events, 1)
			assert.Equal(t, ErrorPath, events[0].Path)
			assert.Equal(t, tc.errAt, events[0].Offset)

			assert.Zero(t, s.ProcessChunk(nil, []byte(`{}`)), "failed splitter consumes nothing")
		})
	}
}

func TestProcessChunk_FilterRejects(t *testing.T) {
	var seen []string
	filters := Filters{
		`{"sn`: func(v *Value) bool {
			seen = append(seen, v.Path())
			return false
		},
		`{"w`: func(v *Value) bool {
			seen = append(seen, v.Path())
			return true
		},
	}
	s := New()
	n := s.ProcessChunk(filters, []byte(`{"sn":"x","w":"y"}`))
	assert.Equal(t, 9, n)
	assert.True(t, s.HasFailed())
	assert.Equal(t, []string{`{"sn`}, seen)

	s.Clear()
	assert.False(t, s.HasFailed())
	assert.True(t, s.IsStarting())
}

func TestProcessChunk_OffsetsAccumulateAcrossChunks(t *testing.T) {
	var events []event
	filters := recorder(&events, `{"b`)
	s := New()
	n := s.ProcessChunk(filters, []byte(`{"a":"long value",`))
	require.Equal(t, 18, n)
	s.ProcessChunk(filters, []byte(`"b":2}`))
	require.Len(t, events, 1)
	assert.Equal(t, int64(22), events[0].Offset)
}

func TestStatus(t *testing.T) {
	s := New()
	assert.Equal(t, Status{Starting: true}, s.Status())
	s.ProcessChunk(nil, []byte(`[]`))
	assert.Equal(t, Status{Finished: true}, s.Status())
	assert.Equal(t, "starting=false finished=true failed=false", s.Status().String())
}

func TestValidNumber(t *testing.T) {
	valid := []string{"0", "-0", "12", "1.5", "-1.5e3", "2E+10", "3e-2"}
	invalid := []string{"", "-", "01", "1.", ".5", "1e", "1e+", "+1", "1-2", "1.2.3"}
	for _, n := range valid {
		assert.True(t, validNumber([]byte(n)), n)
	}
	for _, n := range invalid {
		assert.False(t, validNumber([]byte(n)), n)
	}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, `{`, ObjectPath("", ""))
	assert.Equal(t, `[`, ArrayPath("", ""))
	assert.Equal(t, `{"w`, PrimitivePath(ObjectPath("", ""), "w"))
	assert.Equal(t, `{[t`, ArrayPath(`{`, "t"))
	assert.Equal(t, `[{"a`, PrimitivePath(ObjectPath(`[`, ""), "a"))
}

// feedChunks presents doc size bytes at a time, re-presenting the unconsumed
// tail like the pump does.
func feedChunks(s *Splitter, filters Filters, doc string, size int) {
	var pending []byte
	for i := 0; i < len(doc) && !s.HasFinished() && !s.HasFailed(); i += size {
		pending = append(pending, doc[i:min(i+size, len(doc))]...)
		n := s.ProcessChunk(filters, pending)
		pending = append(pending[:0], pending[n:]...)
	}
}

func heldArrayDoc(elems int) string {
	var b strings.Builder
	b.WriteString(`{"sn":"AbC123","t":[`)
	for i := 0; i < elems; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"h":"n%05d","s":%d,"a":{"n":"file %d"},"k":true}`, i, i*7, i)
	}
	b.WriteString(`],"ir":0}`)
	return b.String()
}

func TestProcessChunk_ScansEveryByteOnce(t *testing.T) {
	docs := map[string]string{
		"held array":  heldArrayDoc(2000),
		"long string": `{"w":"` + strings.Repeat("x", 5000) + `","sn":"q"}`,
		"long number": `{"ir":` + strings.Repeat("1", 5000) + `}`,
	}
	paths := []string{`{[t`, `{"sn`, `{"w`, `{"ir`}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			var whole []event
			New().ProcessChunk(recorder(&whole, paths...), []byte(doc))

			for _, size := range []int{1, 7, 64} {
				var events []event
				s := New()
				feedChunks(s, recorder(&events, paths...), doc, size)
				require.True(t, s.HasFinished(), "chunk size %d", size)
				assert.Equal(t, whole, events, "chunk size %d", size)
				assert.Equal(t, int64(len(doc)), s.scanned, "chunk size %d", size)
			}
		})
	}
}

func TestProcessChunk_RetainedBytesDropped(t *testing.T) {
	var events []event
	filters := recorder(&events, `{[t`)
	s := New()

	assert.Equal(t, 5, s.ProcessChunk(filters, []byte(`{"t":[1,2,`)))
	// Fewer bytes than were retained: the held array is scanned again.
	assert.Zero(t, s.ProcessChunk(filters, []byte(`[`)))
	assert.Equal(t, 4, s.ProcessChunk(filters, []byte(`[1]}`)))
	assert.True(t, s.HasFinished())
	assert.Equal(t, []event{{Path: `{[t`, Raw: `[1]`, Offset: 5}}, events)
}

func TestProcessChunk_NestingLimit(t *testing.T) {
	deep := strings.Repeat("[", maxDepth) + strings.Repeat("]", maxDepth)
	s := New()
	assert.Equal(t, len(deep), s.ProcessChunk(nil, []byte(deep)))
	assert.True(t, s.HasFinished())

	var events []event
	s = New()
	n := s.ProcessChunk(recorder(&events, ErrorPath), []byte(strings.Repeat("[", maxDepth+1)))
	assert.Equal(t, maxDepth, n)
	assert.True(t, s.HasFailed())
	require.Len(t, events, 1)
	assert.Equal(t, int64(maxDepth), events[0].Offset)
}

func BenchmarkProcessChunk_HeldArray(b *testing.B) {
	doc := heldArrayDoc(20000)
	filters := Filters{`{[t`: func(*Value) bool { return true }}
	b.SetBytes(int64(len(doc)))
	for i := 0; i < b.N; i++ {
		feedChunks(New(), filters, doc, 32<<10)
	}
}
