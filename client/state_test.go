//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	"trpc.group/trpc-go/trpc-actionpacket-go/splitter"
)

func value(path, raw string) *splitter.Value {
	return splitter.NewValue(path, []byte(raw))
}

const tree = `[
	{"h":"root","t":2,"a":{"n":"Cloud"},"ts":1700000000},
	{"h":"docs","p":"root","t":1,"a":"{\"n\":\"docs\"}"},
	{"h":"f1","p":"docs","t":0,"a":{"n":"a.txt"},"s":12,"u":"me"},
	{"h":"f2","p":"docs","t":0,"a":{"n":"b.md"}},
	{"h":"anon","p":"root","t":0}
]`

func TestParseSequenceNumber(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"AbC123", false},
		{"a-b_C9", false},
		{"AAAAAAAAAAA", false},
		{"AAAAAAAAAAAA", true},
		{"", true},
		{"ab+c", true},
		{"ab c", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			seq, err := ParseSequenceNumber(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSequenceNumber)
				assert.True(t, seq.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, seq.String())
		})
	}
}

func TestState_Scalars(t *testing.T) {
	s := NewState()
	s.SetNotifyURL("https://x")
	s.SetMorePending(true)
	require.NoError(t, s.UpdateSequenceNumber(value(dispatcher.PathSequenceNumber, `"AbC123"`)))

	assert.Equal(t, "https://x", s.NotifyURL())
	assert.True(t, s.MorePending())
	assert.Equal(t, SequenceNumber("AbC123"), s.SequenceNumber())

	assert.ErrorIs(t, s.UpdateSequenceNumber(value(dispatcher.PathSequenceNumber, `42`)), ErrInvalidSequenceNumber)
	assert.ErrorIs(t, s.UpdateSequenceNumber(value(dispatcher.PathSequenceNumber, `"bad!"`)), ErrInvalidSequenceNumber)
	assert.Equal(t, SequenceNumber("AbC123"), s.SequenceNumber(), "rejected values leave the number unchanged")
}

func TestState_ReadTree(t *testing.T) {
	s := NewState()
	require.NoError(t, s.ReadTree(value(dispatcher.PathTree, tree)))

	root, ok := s.Node("root")
	require.True(t, ok)
	assert.Equal(t, NodeRoot, root.Type)
	assert.Equal(t, "Cloud", root.Name)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), root.Timestamp)

	f1, _ := s.Node("f1")
	assert.Equal(t, int64(12), f1.Size)
	assert.Equal(t, "me", f1.Owner)

	anon, _ := s.Node("anon")
	assert.Equal(t, "anon", anon.Name, "missing names fall back to the handle")

	p, ok := s.Path("f2")
	require.True(t, ok)
	assert.Equal(t, "Cloud/docs/b.md", p)

	kids := s.Children("docs")
	require.Len(t, kids, 2)
	assert.Equal(t, "a.txt", kids[0].Name)
	assert.Equal(t, "b.md", kids[1].Name)
}

func TestState_ReadTreeErrors(t *testing.T) {
	s := NewState()
	assert.ErrorIs(t, s.ReadTree(value(dispatcher.PathTree, `{}`)), ErrNotArray)

	err := s.ReadTree(value(dispatcher.PathTree, `[{"h":"a"},{"p":"a"}]`))
	require.ErrorIs(t, err, ErrMissingHandle)
	assert.Contains(t, err.Error(), "node 1")
	_, ok := s.Node("a")
	assert.True(t, ok, "records before the bad one stay applied")
}

func TestState_NameNormalization(t *testing.T) {
	s := NewState()
	require.NoError(t, s.ReadTree(value(dispatcher.PathTree, `[{"h":"x","a":{"n":"cafe\u0301"}}]`)))
	n, _ := s.Node("x")
	assert.Equal(t, "caf\u00e9", n.Name)
}

func TestState_MoveNode(t *testing.T) {
	s := NewState()
	require.NoError(t, s.ReadTree(value(dispatcher.PathTree, tree)))
	require.NoError(t, s.ReadTree(value(dispatcher.PathTree, `[{"h":"f1","p":"root","a":{"n":"a.txt"}}]`)))

	assert.Len(t, s.Children("docs"), 1)
	p, _ := s.Path("f1")
	assert.Equal(t, "Cloud/a.txt", p)
}

func TestState_ReadUsers(t *testing.T) {
	s := NewState()
	users := `[{"u":"U1","m":"a@x","c":1,"ts":10},{"u":"U2","c":2}]`
	require.NoError(t, s.ReadUsers(value(dispatcher.PathUsers, users), true))
	require.NoError(t, s.ReadUsers(value(dispatcher.PathUsers, `[{"u":"U3"}]`), false))

	u, ok := s.User("U1")
	require.True(t, ok)
	assert.Equal(t, "a@x", u.Email)
	assert.Equal(t, VisibilityVisible, u.Visibility)
	assert.Equal(t, time.Unix(10, 0).UTC(), u.Timestamp)

	assert.Equal(t, 2, s.TakeNotifications())
	assert.Equal(t, 0, s.TakeNotifications())

	assert.ErrorIs(t, s.ReadUsers(value(dispatcher.PathUsers, `"x"`), true), ErrNotArray)
	assert.ErrorIs(t, s.ReadUsers(value(dispatcher.PathUsers, `[{"m":"x"}]`), true), ErrMissingHandle)
}

func TestState_Glob(t *testing.T) {
	s := NewState()
	require.NoError(t, s.ReadTree(value(dispatcher.PathTree, tree)))

	tests := []struct {
		pattern string
		want    []string
	}{
		{"Cloud/**/*.txt", []string{"Cloud/docs/a.txt"}},
		{"Cloud/docs/*", []string{"Cloud/docs/a.txt", "Cloud/docs/b.md"}},
		{"Cloud/*", []string{"Cloud/anon", "Cloud/docs"}},
		{"nothing/**", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := s.Glob(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Glob("Cloud/[")
	assert.Error(t, err)
}

func TestState_Snapshot(t *testing.T) {
	s := NewState()
	require.NoError(t, s.ReadTree(value(dispatcher.PathTree, tree)))
	require.NoError(t, s.ReadUsers(value(dispatcher.PathUsers, `[{"u":"B"},{"u":"A"}]`), true))
	s.SetNotifyURL("https://x")

	snap := s.Snapshot()
	assert.Equal(t, "https://x", snap.NotifyURL)
	require.Len(t, snap.Nodes, 5)
	assert.Equal(t, "anon", snap.Nodes[0].Handle)
	require.Len(t, snap.Users, 2)
	assert.Equal(t, "A", snap.Users[0].Handle)
	assert.Equal(t, 2, snap.PendingNotifications)
}

// TestState_ThroughDispatcher feeds a whole packet through a dispatcher.
func TestState_ThroughDispatcher(t *testing.T) {
	s := NewState()
	d := dispatcher.New(s, dispatcher.WithObserver(dispatcher.NopObserver{}))
	doc := `{"w":"https://x","sn":"AbC123","ir":1,"t":` + tree + `,"u":[{"u":"U1"}],` +
		`"a":[{"a":"d","n":"docs"},{"a":"zz"}]}`

	var pending []byte
	for i := 0; i < len(doc); i += 7 {
		end := min(i+7, len(doc))
		pending = append(pending, doc[i:end]...)
		n := d.ProcessChunk(pending)
		pending = pending[n:]
	}
	assert.Empty(t, pending)
	require.True(t, d.Splitter().HasFinished())
	require.False(t, d.Splitter().HasFailed())

	snap := s.Snapshot()
	assert.Equal(t, "https://x", snap.NotifyURL)
	assert.True(t, snap.MorePending)
	assert.Equal(t, SequenceNumber("AbC123"), snap.SequenceNumber)
	assert.Len(t, snap.Nodes, 2, "docs subtree was deleted")
	assert.Len(t, snap.Users, 1)
	assert.Equal(t, 1, snap.ActionsApplied)
	assert.Equal(t, 1, snap.ActionsUnknown)
}

func TestState_NilStateDrains(t *testing.T) {
	d := dispatcher.New((*State)(nil), dispatcher.WithObserver(dispatcher.NopObserver{}))
	doc := `{"sn":"AbC123","t":` + tree + `,"u":[{"u":"U1"}],"a":[{"a":"d","n":"f1"}]}`

	assert.NotPanics(t, func() {
		assert.Equal(t, len(doc), d.ProcessChunk([]byte(doc)))
	})
	assert.True(t, d.Splitter().HasFinished())
}
