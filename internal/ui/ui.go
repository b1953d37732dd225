// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package ui is the operator surface: current status over HTTP,
// live snapshots over websocket, and manual override intake.
package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coolplant/internal/config"
	"coolplant/internal/engine"
	"coolplant/internal/events"
	"coolplant/internal/statestore"
	"coolplant/pkg/logger"
)

type Service struct {
	conf  *config.Config
	log   *logger.Logger
	store *statestore.Store

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	latest  *engine.Snapshot
}

func New(conf *config.Config, store *statestore.Store) *Service {
	return &Service{
		conf:  conf,
		log:   logger.New("OperatorUI"),
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run fans command snapshots out to connected websocket clients.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("Running...")
	defer s.log.Info("Stopped")

	commands, _ := s.conf.EventBus.Subscribe(ctx, events.TopicCommands, true)

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case ev, ok := <-commands:
			if !ok {
				return
			}
			snap := ev.(events.CommandUpdate).Snapshot
			s.mu.Lock()
			s.latest = &snap
			s.mu.Unlock()
			s.broadcast(snap)
		}
	}
}

func (s *Service) broadcast(snap engine.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Error("marshal snapshot: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug("dropping client: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Service) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
}

// ServeHTTP routes the operator endpoints. The service is mounted
// under a prefix by the root server, so paths here are bare.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/ws":
		s.handleWebsocket(w, r)
	case r.URL.Path == "/status" && r.Method == http.MethodGet:
		s.handleStatus(w, r)
	case r.URL.Path == "/faults" && r.Method == http.MethodGet:
		s.handleFaults(w, r)
	case r.URL.Path == "/overrides" && r.Method == http.MethodPost:
		s.handleOverrides(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.log.Info("websocket client connected: %s", r.RemoteAddr)

	// reader loop: clients may also submit overrides over the socket
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmds engine.UICommands
			if err := json.Unmarshal(data, &cmds); err != nil {
				s.log.Error("bad override message: %v", err)
				continue
			}
			s.publishOverrides(cmds)
		}
	}()
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()

	if snap == nil {
		http.Error(w, "no control cycle has run yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Service) handleFaults(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		http.Error(w, "fault log unavailable", http.StatusServiceUnavailable)
		return
	}
	faults, err := s.store.RecentFaults(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(faults)
}

func (s *Service) handleOverrides(w http.ResponseWriter, r *http.Request) {
	var cmds engine.UICommands
	if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.publishOverrides(cmds)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Service) publishOverrides(cmds engine.UICommands) {
	s.conf.EventBus.Publish(events.TopicOverrides, events.OverrideUpdate{
		Commands: cmds,
		Time:     time.Now(),
	})
	s.log.Info("overrides published")
}
