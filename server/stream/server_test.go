//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-actionpacket-go/client"
	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	"trpc.group/trpc-go/trpc-actionpacket-go/feed"
)

const packet = `{"w":"https://x","sn":"AbC123","ir":0,` +
	`"t":[{"h":"root","t":2,"a":{"n":"Cloud"}},{"h":"d","p":"root","t":1,"a":{"n":"docs"}},` +
	`{"h":"f1","p":"d","a":{"n":"a.txt"}},{"h":"f2","p":"d","a":{"n":"b.md"}}]}`

func newTestServer(opts ...Option) *Server {
	opts = append([]Option{
		WithObserver(func(string) dispatcher.Observer { return dispatcher.NopObserver{} }),
		WithPumpOptions(feed.WithChunkSize(16)),
	}, opts...)
	return New(opts...)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestServer_PacketsAndSnapshot(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodPost, "/v1/streams/s1/packets", packet)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rsp := decode[packetsResponse](t, rec)
	assert.Equal(t, "s1", rsp.ID)
	assert.Equal(t, int64(1), rsp.Stats.Values)
	assert.Equal(t, int64(len(packet)), rsp.Totals.Bytes)

	rec = do(t, s, http.MethodGet, "/v1/streams/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	snap := decode[client.Snapshot](t, rec)
	assert.Equal(t, "https://x", snap.NotifyURL)
	assert.False(t, snap.MorePending)
	assert.Equal(t, client.SequenceNumber("AbC123"), snap.SequenceNumber)
	assert.Len(t, snap.Nodes, 4)

	rec = do(t, s, http.MethodPost, "/v1/streams/s1/packets", `{"sn":"Next1","a":[{"a":"d","n":"f2"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[packetsResponse](t, rec).Totals.Values)
}

func TestServer_Nodes(t *testing.T) {
	s := newTestServer()
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/streams/s1/packets", packet).Code)

	tests := []struct {
		target string
		code   int
		want   []string
	}{
		{"/v1/streams/s1/nodes?glob=Cloud/docs/*.txt", http.StatusOK, []string{"Cloud/docs/a.txt"}},
		{"/v1/streams/s1/nodes", http.StatusOK, []string{"Cloud", "Cloud/docs", "Cloud/docs/a.txt", "Cloud/docs/b.md"}},
		{"/v1/streams/s1/nodes?glob=none", http.StatusOK, []string{}},
		{"/v1/streams/s1/nodes?glob=%5B", http.StatusBadRequest, nil},
		{"/v1/streams/nope/nodes", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target, "")
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.want != nil {
				assert.Equal(t, tt.want, decode[map[string][]string](t, rec)["paths"])
			}
		})
	}
}

func TestServer_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		body string
		code int
	}{
		{"malformed", nil, `{"w":]`, http.StatusUnprocessableEntity},
		{"rejected", nil, `{"sn":"?"}`, http.StatusUnprocessableEntity},
		{"truncated", nil, `{"sn":"Ab`, http.StatusBadRequest},
		{"too large", []Option{WithPumpOptions(feed.WithMaxPending(32))}, packet, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.opts...)
			rec := do(t, s, http.MethodPost, "/v1/streams/e/packets", tt.body)
			require.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, decode[packetsResponse](t, rec).Error)

			// The next body starts a fresh parse.
			rec = do(t, s, http.MethodPost, "/v1/streams/e/packets", `{"sn":"Ok1"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_Lifecycle(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodPost, "/v1/streams", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	info := decode[streamInfo](t, rec)
	_, err := uuid.Parse(info.ID)
	require.NoError(t, err)

	do(t, s, http.MethodPost, "/v1/streams/b/packets", `{}`)
	rec = do(t, s, http.MethodGet, "/v1/streams", "")
	ids := decode[map[string][]string](t, rec)["streams"]
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, info.ID)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/v1/streams/b", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/v1/streams/b", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/streams/b", "").Code)
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(WithCORSOrigins("https://app.example"))
	req := httptest.NewRequest(http.MethodGet, "/v1/streams", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/streams", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ConcurrentIngest(t *testing.T) {
	s := newTestServer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(t, s, http.MethodPost, "/v1/streams/c/packets", `{"sn":"Same1","ir":1}`)
		}()
	}
	wg.Wait()

	snap := decode[client.Snapshot](t, do(t, s, http.MethodGet, "/v1/streams/c", ""))
	assert.Equal(t, client.SequenceNumber("Same1"), snap.SequenceNumber)
	assert.True(t, snap.MorePending)
}
