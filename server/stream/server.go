//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package stream provides an HTTP server that ingests action packet streams
// and exposes the resulting session state.
package stream

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-actionpacket-go/client"
	"trpc.group/trpc-go/trpc-actionpacket-go/dispatcher"
	"trpc.group/trpc-go/trpc-actionpacket-go/feed"
	"trpc.group/trpc-go/trpc-actionpacket-go/log"
)

// Server keeps one session state per stream id.
type Server struct {
	router *mux.Router

	mu      sync.RWMutex
	streams map[string]*session

	pumpOpts    []feed.Option
	observer    func(id string) dispatcher.Observer
	corsOrigins []string
}

// session is one stream. mu serializes ingestion because a dispatcher is
// not reentrant.
type session struct {
	mu      sync.Mutex
	id      string
	state   *client.State
	d       *dispatcher.Dispatcher
	created time.Time
	total   feed.Stats
}

// Option configures the Server instance.
type Option func(*Server)

// WithPumpOptions sets the options of the pumps reading request bodies.
func WithPumpOptions(opts ...feed.Option) Option {
	return func(s *Server) { s.pumpOpts = append(s.pumpOpts, opts...) }
}

// WithObserver sets the factory of the dispatcher observer of each stream.
// The default is the log observer.
func WithObserver(fn func(id string) dispatcher.Observer) Option {
	return func(s *Server) {
		if fn != nil {
			s.observer = fn
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins. The default allows all.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// New creates a server with no streams.
func New(opts ...Option) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		streams:     make(map[string]*session),
		observer:    dispatcher.NewLogObserver,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/v1/streams", s.handleListStreams).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/streams", s.handleCreateStream).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/streams/{id}", s.handleGetStream).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/streams/{id}", s.handleDeleteStream).Methods(http.MethodDelete)
	s.router.HandleFunc("/v1/streams/{id}/packets", s.handlePackets).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/streams/{id}/nodes", s.handleNodes).Methods(http.MethodGet)

	preflight := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	s.router.HandleFunc("/v1/streams/{id}/packets", preflight).Methods(http.MethodOptions)
}

func (s *Server) newSession(id string) *session {
	st := client.NewState()
	return &session{
		id:      id,
		state:   st,
		d:       dispatcher.New(st, dispatcher.WithSessionID(id), dispatcher.WithObserver(s.observer(id))),
		created: time.Now(),
	}
}

// getOrCreate returns the stream id, creating it on first use.
func (s *Server) getOrCreate(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.streams[id]
	if !ok {
		sess = s.newSession(id)
		s.streams[id] = sess
		log.Infof("stream %s: created", id)
	}
	return sess
}

func (s *Server) get(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.streams[id]
	return sess, ok
}

type streamInfo struct {
	ID      string     `json:"id"`
	Created time.Time  `json:"created"`
	Totals  feed.Stats `json:"totals"`
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	s.writeJSON(w, http.StatusOK, map[string][]string{"streams": ids})
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	sess := s.getOrCreate(uuid.NewString())
	s.writeJSON(w, http.StatusCreated, streamInfo{ID: sess.id, Created: sess.created})
}

type packetsResponse struct {
	ID     string     `json:"id"`
	Stats  feed.Stats `json:"stats"`
	Totals feed.Stats `json:"totals"`
	Error  string     `json:"error,omitempty"`
}

// handlePackets streams the request body into the stream. A body must end
// on a value boundary; after any error the parse restarts with the next body.
func (s *Server) handlePackets(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	stats, err := feed.New(sess.d, s.pumpOpts...).Run(r.Context(), r.Body)
	sess.total.Chunks += stats.Chunks
	sess.total.Bytes += stats.Bytes
	sess.total.Values += stats.Values

	rsp := packetsResponse{ID: id, Stats: stats, Totals: sess.total}
	if err != nil {
		sess.d.Splitter().Clear()
		log.Errorf("stream %s: ingest failed: %v", id, err)
		rsp.Error = err.Error()
		s.writeJSON(w, statusFor(err), rsp)
		return
	}
	s.writeJSON(w, http.StatusOK, rsp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, feed.ErrStreamFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, feed.ErrValueTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.state.Snapshot())
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	pattern := r.URL.Query().Get("glob")
	if pattern == "" {
		pattern = "**"
	}
	paths, err := sess.state.Glob(pattern)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"paths": paths})
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	_, ok := s.streams[id]
	delete(s.streams, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	log.Infof("stream %s: deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}
