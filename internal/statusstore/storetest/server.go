// Package storetest provides an in-memory status API server for tests.
package storetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// Server implements the status API over an in-memory table.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	worlds   map[string]*model.World
	requests []string
	// Now stamps new locks; tests may replace it.
	Now func() time.Time
	// FailActions makes the named actions answer HTTP 500.
	FailActions map[string]bool
}

// NewServer starts a server with an empty table.
func NewServer() *Server {
	s := &Server{
		worlds:      map[string]*model.World{},
		Now:         time.Now,
		FailActions: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed stores w as-is.
func (s *Server) Seed(w model.World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := w
	s.worlds[w.Name] = &cp
}

// World returns a copy of the row for name.
func (s *Server) World(name string) (model.World, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[name]
	if !ok {
		return model.World{}, false
	}
	return *w, true
}

// Requests lists the actions received so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// SetFail toggles failure injection for action.
func (s *Server) SetFail(action string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailActions[action] = fail
}

type request struct {
	Action string `json:"action"`
	World  string `json:"world"`
	Host   string `json:"host"`
	Domain string `json:"domain"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req request
	if r.Method == http.MethodGet {
		req.Action = r.URL.Query().Get("action")
		req.World = r.URL.Query().Get("world")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req.Action)

	if s.FailActions[req.Action] {
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	reply := func(v map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	world, exists := s.worlds[req.World]
	switch req.Action {
	case "list_worlds":
		names := make([]string, 0, len(s.worlds))
		for n := range s.worlds {
			names = append(names, n)
		}
		sort.Strings(names)
		list := make([]model.World, 0, len(names))
		for _, n := range names {
			list = append(list, *s.worlds[n])
		}
		reply(map[string]any{"success": true, "worlds": list})

	case "get_status":
		if !exists {
			reply(map[string]any{"status": "error", "error": "world not found"})
			return
		}
		reply(map[string]any{
			"status":         world.Status,
			"host":           world.Holder,
			"domain":         world.Address,
			"lock_timestamp": world.LockTimestamp,
		})

	case "add_world":
		if exists {
			reply(map[string]any{"success": false, "error": "world already exists"})
			return
		}
		s.worlds[req.World] = &model.World{Name: req.World, Status: model.StatusOffline}
		reply(map[string]any{"success": true})

	case "delete_world":
		if !exists {
			reply(map[string]any{"success": false, "error": "world not found"})
			return
		}
		delete(s.worlds, req.World)
		reply(map[string]any{"success": true})

	case "set_online":
		if !exists {
			reply(map[string]any{"success": false, "error": "world not found"})
			return
		}
		if world.Status == model.StatusOnline && world.Holder != req.Host {
			reply(map[string]any{"success": false, "current_host": world.Holder})
			return
		}
		world.Status = model.StatusOnline
		world.Holder = req.Host
		world.Address = req.Domain
		world.LockTimestamp = s.Now().UTC().Format(time.RFC3339)
		reply(map[string]any{"success": true, "current_host": req.Host})

	case "update_domain":
		if !exists || world.Status != model.StatusOnline {
			reply(map[string]any{"success": false, "error": "world is not online"})
			return
		}
		world.Address = req.Domain
		reply(map[string]any{"success": true})

	case "set_offline":
		if !exists {
			reply(map[string]any{"success": false, "error": "world not found"})
			return
		}
		world.Status = model.StatusOffline
		world.Holder = ""
		world.Address = ""
		world.LockTimestamp = ""
		reply(map[string]any{"success": true})

	default:
		reply(map[string]any{"success": false, "error": "unknown action"})
	}
}
