package ws

import (
	"sort"
	"sync"
	"time"

	"github.com/tcriess/lightspeed-code/types"
)

type presenceEntry struct {
	user          *types.User
	sessions      int
	joined        time.Time
	lastHeartbeat time.Time
}

// Presence tracks which users are connected to one room. Entries are keyed
// by user id with a session refcount, so duplicate tabs of the same user
// count as one active user. A user missing heartbeats past the timeout is
// treated as disconnected and swept out (implicit leave).
type Presence struct {
	mu      sync.Mutex
	entries map[string]*presenceEntry
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[string]*presenceEntry)}
}

// Join adds a session of the user and reports whether this made the user
// active (first session). Idempotent in the set sense: further sessions of
// the same user do not change the active set.
func (p *Presence) Join(user *types.User) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	entry, ok := p.entries[user.Id]
	if !ok {
		p.entries[user.Id] = &presenceEntry{user: user, sessions: 1, joined: now, lastHeartbeat: now}
		return true
	}
	entry.sessions++
	entry.lastHeartbeat = now
	return false
}

// Leave removes a session of the user and reports whether this removed the
// user from the active set (last session). Unknown users are a no-op, the
// user may have been swept concurrently.
func (p *Presence) Leave(userId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[userId]
	if !ok {
		return false
	}
	entry.sessions--
	if entry.sessions > 0 {
		return false
	}
	delete(p.entries, userId)
	return true
}

// Heartbeat refreshes the user's liveness. No-op for unknown users.
func (p *Presence) Heartbeat(userId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.entries[userId]; ok {
		entry.lastHeartbeat = time.Now()
	}
}

// Sweep removes all users whose last heartbeat is older than timeout and
// returns them, regardless of their session count (a silent session is a
// dead session).
func (p *Presence) Sweep(timeout time.Duration) []*types.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline := time.Now().Add(-timeout)
	expired := make([]*types.User, 0)
	for id, entry := range p.entries {
		if entry.lastHeartbeat.Before(deadline) {
			expired = append(expired, entry.user)
			delete(p.entries, id)
		}
	}
	return expired
}

// ListActive returns the ids of the active users, the requesting user's own
// id first (display convenience), the rest in join order.
func (p *Presence) ListActive(selfId string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	rest := make([]*presenceEntry, 0, len(p.entries))
	self := false
	for id, entry := range p.entries {
		if id == selfId {
			self = true
			continue
		}
		rest = append(rest, entry)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].joined.Before(rest[j].joined) })
	ids := make([]string, 0, len(rest)+1)
	if self {
		ids = append(ids, selfId)
	}
	for _, entry := range rest {
		ids = append(ids, entry.user.Id)
	}
	return ids
}

// NoActive returns the number of active (deduplicated) users.
func (p *Presence) NoActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
