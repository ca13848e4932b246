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
)

// Visibility of a contact.
const (
	VisibilityHidden  = 0
	VisibilityVisible = 1
	VisibilityBlocked = 2
)

// User is a contact known to the session.
type User struct {
	Handle     string            `json:"handle"`
	Email      string            `json:"email,omitempty"`
	Visibility int               `json:"visibility"`
	Timestamp  time.Time         `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// parseUser reads a user record {"u","m","c","ts"}.
func parseUser(r gjson.Result) (User, error) {
	if !r.IsObject() {
		return User{}, errors.New("user record is not an object")
	}
	h := r.Get("u").String()
	if h == "" {
		return User{}, ErrMissingHandle
	}
	u := User{
		Handle:     h,
		Email:      r.Get("m").String(),
		Visibility: int(r.Get("c").Int()),
	}
	if ts := r.Get("ts"); ts.Exists() {
		u.Timestamp = time.Unix(ts.Int(), 0).UTC()
	}
	return u, nil
}

func (u User) clone() User {
	if u.Attributes != nil {
		attrs := make(map[string]string, len(u.Attributes))
		for k, v := range u.Attributes {
			attrs[k] = v
		}
		u.Attributes = attrs
	}
	return u
}
