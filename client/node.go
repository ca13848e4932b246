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
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"
)

// NodeType classifies a node of the tree.
type NodeType int

// Node types as carried in the t field of a node record.
const (
	NodeFile NodeType = iota
	NodeFolder
	NodeRoot
	NodeInbox
	NodeRubbish
)

// String implements fmt.Stringer.
func (t NodeType) String() string {
	switch t {
	case NodeFile:
		return "file"
	case NodeFolder:
		return "folder"
	case NodeRoot:
		return "root"
	case NodeInbox:
		return "inbox"
	case NodeRubbish:
		return "rubbish"
	default:
		return "unknown"
	}
}

// ErrMissingHandle is returned for a node or user record without a handle.
var ErrMissingHandle = errors.New("record has no handle")

// Node is one entry of the node tree.
type Node struct {
	Handle    string    `json:"handle"`
	Parent    string    `json:"parent,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Type      NodeType  `json:"type"`
	Name      string    `json:"name"`
	Size      int64     `json:"size,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// parseNode reads a node record {"h","p","u","t","a","s","ts"}.
func parseNode(r gjson.Result) (Node, error) {
	if !r.IsObject() {
		return Node{}, errors.New("node record is not an object")
	}
	h := r.Get("h").String()
	if h == "" {
		return Node{}, ErrMissingHandle
	}
	n := Node{
		Handle: h,
		Parent: r.Get("p").String(),
		Owner:  r.Get("u").String(),
		Type:   NodeType(r.Get("t").Int()),
		Size:   r.Get("s").Int(),
	}
	if ts := r.Get("ts"); ts.Exists() {
		n.Timestamp = time.Unix(ts.Int(), 0).UTC()
	}
	n.Name = nodeName(r.Get("a"))
	if n.Name == "" {
		n.Name = h
	}
	return n, nil
}

// nodeName extracts the n member of an attribute value. The attributes may
// come as an object or as a string holding one.
func nodeName(attrs gjson.Result) string {
	if attrs.Type == gjson.String {
		if !gjson.Valid(attrs.Str) {
			return ""
		}
		attrs = gjson.Parse(attrs.Str)
	}
	if !attrs.IsObject() {
		return ""
	}
	return norm.NFC.String(attrs.Get("n").String())
}
