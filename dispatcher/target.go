//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package dispatcher

import "trpc.group/trpc-go/trpc-actionpacket-go/splitter"

// root is the path of the top level object.
var root = splitter.ObjectPath("", "")

// Paths of the action packet members the dispatcher reacts to.
var (
	// PathNotifyURL is the notification URL string of a batch.
	PathNotifyURL = splitter.PrimitivePath(root, "w")
	// PathMorePending is the integer flag telling that more batches follow.
	PathMorePending = splitter.PrimitivePath(root, "ir")
	// PathSequenceNumber is the sequence number reached by the batch.
	PathSequenceNumber = splitter.PrimitivePath(root, "sn")
	// PathTree is the array of node tree mutations.
	PathTree = splitter.ArrayPath(root, "t")
	// PathUsers is the array of user updates.
	PathUsers = splitter.ArrayPath(root, "u")
	// PathActions is the array of action records.
	PathActions = splitter.ArrayPath(root, "a")
	// PathObjectEnd is the close of a top level object.
	PathObjectEnd = root
	// PathArrayEnd is the close of a top level array.
	PathArrayEnd = splitter.ArrayPath("", "")
)

// PathError is reported by the splitter on malformed input.
const PathError = splitter.ErrorPath

// Target owns the session state updated by action packets.
//
// Values handed to Target methods are only valid during the call. A non nil
// error rejects the value and fails the current stream pass.
type Target interface {
	// SetNotifyURL stores the URL used to wait for the next batch.
	SetNotifyURL(url string)
	// SetMorePending records whether the server is spoonfeeding more batches.
	SetMorePending(more bool)
	// UpdateSequenceNumber advances the sequence number from a scalar value.
	UpdateSequenceNumber(v *splitter.Value) error
	// ReadTree applies a closed array of node tree mutations.
	ReadTree(v *splitter.Value) error
	// ReadUsers applies a closed array of user updates. notify asks for the
	// updates to be applied and reported immediately.
	ReadUsers(v *splitter.Value, notify bool) error
	// ProcessActions interprets a closed array of action records.
	ProcessActions(v *splitter.Value) error
}
