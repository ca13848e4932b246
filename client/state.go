//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package client holds the session state an action packet stream updates.
//
// State implements dispatcher.Target. Writers are the dispatcher handlers of
// one stream; readers may query it concurrently.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	"trpc.group/trpc-go/trpc-actionpacket-go/splitter"
)

var _ dispatcher.Target = (*State)(nil)

// ErrNotArray is returned when a tree, user or action value is not an array.
var ErrNotArray = errors.New("value is not an array")

// State is the in-memory session state.
type State struct {
	mu sync.RWMutex

	notifyURL   string
	morePending bool
	seq         SequenceNumber

	nodes    map[string]*Node
	children map[string]map[string]struct{}
	users    map[string]*User

	pendingNotify  int
	actionsApplied int
	actionsUnknown int
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		nodes:    make(map[string]*Node),
		children: make(map[string]map[string]struct{}),
		users:    make(map[string]*User),
	}
}

// SetNotifyURL implements dispatcher.Target.
func (s *State) SetNotifyURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyURL = url
}

// SetMorePending implements dispatcher.Target.
func (s *State) SetMorePending(more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.morePending = more
}

// UpdateSequenceNumber implements dispatcher.Target. The value must be a
// JSON string holding a valid sequence number; the stored one is unchanged
// otherwise.
func (s *State) UpdateSequenceNumber(v *splitter.Value) error {
	r := v.Result()
	if r.Type != gjson.String {
		return fmt.Errorf("%w: not a string", ErrInvalidSequenceNumber)
	}
	seq, err := ParseSequenceNumber(r.Str)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = seq
	return nil
}

// ReadTree implements dispatcher.Target. Every element of the array is a
// node record and is inserted or replaced. A bad record aborts the walk;
// the records before it stay applied.
func (s *State) ReadTree(v *splitter.Value) error {
	r := v.Result()
	if !r.IsArray() {
		return fmt.Errorf("read tree: %w", ErrNotArray)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readNodes(r)
}

// ReadUsers implements dispatcher.Target. When notify is true every user
// read is counted as a pending notification.
func (s *State) ReadUsers(v *splitter.Value, notify bool) error {
	r := v.Result()
	if !r.IsArray() {
		return fmt.Errorf("read users: %w", ErrNotArray)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUsers(r, notify)
}

func (s *State) readNodes(arr gjson.Result) error {
	var err error
	i := 0
	arr.ForEach(func(_, elem gjson.Result) bool {
		var n Node
		if n, err = parseNode(elem); err != nil {
			err = fmt.Errorf("node %d: %w", i, err)
			return false
		}
		s.putNode(n)
		i++
		return true
	})
	return err
}

func (s *State) readUsers(arr gjson.Result, notify bool) error {
	var err error
	i := 0
	arr.ForEach(func(_, elem gjson.Result) bool {
		var u User
		if u, err = parseUser(elem); err != nil {
			err = fmt.Errorf("user %d: %w", i, err)
			return false
		}
		s.putUser(u)
		if notify {
			s.pendingNotify++
		}
		i++
		return true
	})
	return err
}

// putNode inserts n or replaces the node with the same handle, moving it
// under its new parent.
func (s *State) putNode(n Node) {
	if old, ok := s.nodes[n.Handle]; ok && old.Parent != n.Parent {
		s.unlink(old)
	}
	s.nodes[n.Handle] = &n
	if n.Parent == "" {
		return
	}
	kids := s.children[n.Parent]
	if kids == nil {
		kids = make(map[string]struct{})
		s.children[n.Parent] = kids
	}
	kids[n.Handle] = struct{}{}
}

func (s *State) unlink(n *Node) {
	if kids := s.children[n.Parent]; kids != nil {
		delete(kids, n.Handle)
		if len(kids) == 0 {
			delete(s.children, n.Parent)
		}
	}
}

// deleteNode removes h and its whole subtree, returning how many nodes
// were removed.
func (s *State) deleteNode(h string) int {
	n, ok := s.nodes[h]
	if !ok {
		return 0
	}
	s.unlink(n)
	removed := 0
	stack := []string{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := s.nodes[cur]; !ok {
			continue
		}
		delete(s.nodes, cur)
		removed++
		for kid := range s.children[cur] {
			stack = append(stack, kid)
		}
		delete(s.children, cur)
	}
	return removed
}

// putUser inserts u or refreshes the user with the same handle, keeping the
// attributes already known.
func (s *State) putUser(u User) {
	if old, ok := s.users[u.Handle]; ok && u.Attributes == nil {
		u.Attributes = old.Attributes
	}
	s.users[u.Handle] = &u
}

// NotifyURL returns the last notification URL received.
func (s *State) NotifyURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifyURL
}

// MorePending reports whether the server announced more packets.
func (s *State) MorePending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.morePending
}

// SequenceNumber returns the last sequence number received.
func (s *State) SequenceNumber() SequenceNumber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// TakeNotifications returns the number of pending user notifications and
// resets it.
func (s *State) TakeNotifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.pendingNotify
	s.pendingNotify = 0
	return n
}
