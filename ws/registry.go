package ws

import (
	"sync"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/types"
)

// Registry keeps one running hub per room. Hubs are created lazily on first
// access and keep running for the process lifetime (rooms are cheap, a hub
// without clients only carries its cron runner).
type Registry struct {
	cfg       *config.Config
	persister persistence.Persister

	mu   sync.Mutex
	hubs map[string]*Hub
}

func NewRegistry(cfg *config.Config, persister persistence.Persister) *Registry {
	return &Registry{
		cfg:       cfg,
		persister: persister,
		hubs:      make(map[string]*Hub),
	}
}

// GetHub returns the room's hub, starting one if none is running.
func (r *Registry) GetHub(room *types.Room) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hub, ok := r.hubs[room.Id]; ok {
		return hub
	}
	hub := NewHub(room, r.cfg, r.persister)
	go hub.Run()
	r.hubs[room.Id] = hub
	return hub
}

// PeekHub returns the room's hub if one is running, nil otherwise. Used by
// read-only callers that must not spin up a hub for an idle room.
func (r *Registry) PeekHub(roomId string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hubs[roomId]
}

// Close stops all running hubs.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, hub := range r.hubs {
		hub.Close()
		delete(r.hubs, id)
	}
}
