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
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"trpc.group/trpc-go/trpc-actionpacket-go/log"
	"trpc.group/trpc-go/trpc-actionpacket-go/splitter"
)

// Action kinds carried in the a member of an action record.
const (
	ActionNewNodes   = "t"
	ActionUpdateNode = "u"
	ActionDeleteNode = "d"
	ActionContacts   = "c"
	ActionUserAttr   = "ua"
)

// ProcessActions implements dispatcher.Target. Records are applied in
// order. Unknown kinds are counted and skipped, updates and deletions of
// unknown nodes are ignored. A malformed record stops the walk with an
// error naming its index; the records before it stay applied.
func (s *State) ProcessActions(v *splitter.Value) error {
	r := v.Result()
	if !r.IsArray() {
		return fmt.Errorf("process actions: %w", ErrNotArray)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	i := 0
	r.ForEach(func(_, rec gjson.Result) bool {
		if err = s.applyAction(rec); err != nil {
			err = fmt.Errorf("action %d: %w", i, err)
			return false
		}
		i++
		return true
	})
	return err
}

func (s *State) applyAction(rec gjson.Result) error {
	if !rec.IsObject() {
		return errors.New("record is not an object")
	}
	kind := rec.Get("a").String()
	switch kind {
	case ActionNewNodes:
		f := rec.Get("t.f")
		if !f.IsArray() {
			return fmt.Errorf("new nodes: %w", ErrNotArray)
		}
		if err := s.readNodes(f); err != nil {
			return err
		}
	case ActionUpdateNode:
		if err := s.updateNode(rec); err != nil {
			return err
		}
	case ActionDeleteNode:
		h := rec.Get("n").String()
		if h == "" {
			return ErrMissingHandle
		}
		log.Debugf("client: deleted %d nodes under %s", s.deleteNode(h), h)
	case ActionContacts:
		u := rec.Get("u")
		if !u.IsArray() {
			return fmt.Errorf("contacts: %w", ErrNotArray)
		}
		if err := s.readUsers(u, true); err != nil {
			return err
		}
	case ActionUserAttr:
		if err := s.updateUserAttrs(rec); err != nil {
			return err
		}
	default:
		s.actionsUnknown++
		log.Debugf("client: skipping action %q", kind)
		return nil
	}
	s.actionsApplied++
	return nil
}

// updateNode applies {"a":"u","n":h,"u":owner,"at":attrs,"ts":ts}. Only the
// members present are changed.
func (s *State) updateNode(rec gjson.Result) error {
	h := rec.Get("n").String()
	if h == "" {
		return ErrMissingHandle
	}
	n, ok := s.nodes[h]
	if !ok {
		log.Debugf("client: update of unknown node %s ignored", h)
		return nil
	}
	if u := rec.Get("u"); u.Exists() {
		n.Owner = u.String()
	}
	if name := nodeName(rec.Get("at")); name != "" {
		n.Name = name
	}
	if ts := rec.Get("ts"); ts.Exists() {
		n.Timestamp = time.Unix(ts.Int(), 0).UTC()
	}
	return nil
}

// updateUserAttrs applies {"a":"ua","u":h,"ua":{name:value}}. A null value
// removes the attribute.
func (s *State) updateUserAttrs(rec gjson.Result) error {
	h := rec.Get("u").String()
	if h == "" {
		return ErrMissingHandle
	}
	attrs := rec.Get("ua")
	if !attrs.IsObject() {
		return errors.New("user attributes are not an object")
	}
	u, ok := s.users[h]
	if !ok {
		u = &User{Handle: h}
		s.users[h] = u
	}
	attrs.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Null {
			delete(u.Attributes, k.String())
			return true
		}
		if u.Attributes == nil {
			u.Attributes = make(map[string]string)
		}
		u.Attributes[k.String()] = v.String()
		return true
	})
	return nil
}
