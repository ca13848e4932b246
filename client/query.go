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
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Node returns a copy of the node with handle h.
func (s *State) Node(h string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[h]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Children returns the direct children of h sorted by name.
func (s *State) Children(h string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kids := make([]Node, 0, len(s.children[h]))
	for kid := range s.children[h] {
		if n, ok := s.nodes[kid]; ok {
			kids = append(kids, *n)
		}
	}
	sort.Slice(kids, func(i, j int) bool {
		if kids[i].Name != kids[j].Name {
			return kids[i].Name < kids[j].Name
		}
		return kids[i].Handle < kids[j].Handle
	})
	return kids
}

// Path returns the slash separated names from the topmost known ancestor
// down to h.
func (s *State) Path(h string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path(h)
}

func (s *State) path(h string) (string, bool) {
	n, ok := s.nodes[h]
	if !ok {
		return "", false
	}
	var names []string
	seen := make(map[string]struct{})
	for ok {
		if _, loop := seen[n.Handle]; loop {
			break
		}
		seen[n.Handle] = struct{}{}
		names = append(names, n.Name)
		n, ok = s.nodes[n.Parent]
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/"), true
}

// Glob returns the sorted paths of the nodes matching pattern, using
// doublestar syntax.
func (s *State) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for h := range s.nodes {
		p, _ := s.path(h)
		if ok, _ := doublestar.Match(pattern, p); ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// User returns a copy of the user with handle h.
func (s *State) User(h string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[h]
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

// Snapshot is a point in time copy of a State.
type Snapshot struct {
	NotifyURL            string         `json:"notify_url,omitempty"`
	MorePending          bool           `json:"more_pending"`
	SequenceNumber       SequenceNumber `json:"sequence_number,omitempty"`
	Nodes                []Node         `json:"nodes"`
	Users                []User         `json:"users"`
	PendingNotifications int            `json:"pending_notifications"`
	ActionsApplied       int            `json:"actions_applied"`
	ActionsUnknown       int            `json:"actions_unknown"`
}

// Snapshot copies the whole state. Nodes and users are sorted by handle.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		NotifyURL:            s.notifyURL,
		MorePending:          s.morePending,
		SequenceNumber:       s.seq,
		Nodes:                make([]Node, 0, len(s.nodes)),
		Users:                make([]User, 0, len(s.users)),
		PendingNotifications: s.pendingNotify,
		ActionsApplied:       s.actionsApplied,
		ActionsUnknown:       s.actionsUnknown,
	}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, u.clone())
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].Handle < snap.Nodes[j].Handle })
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].Handle < snap.Users[j].Handle })
	return snap
}
