package ws

import (
	"container/ring"
	"encoding/json"
	"sync"
	"time"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/robfig/cron/v3"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/filter"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/types"
)

const (
	maxMessageSize       = 65536
	pongWait             = 2 * time.Minute
	pingPeriod           = time.Minute
	writeWait            = 10 * time.Second
	defaultHistorySize   = 20
	broadcastChannelSize = 1000
	historyChannelSize   = 1000
)

// Hub is the per-room broadcast channel. There is one hub per room, all
// concurrent sessions funnel their state mutations through its Run loop,
// which is what serializes Join/Leave/Publish for a given room. Rooms on
// different hubs proceed fully in parallel.
type Hub struct {
	Room *types.Room

	// Registered clients.
	clients map[*Client]struct{}

	// Broadcast raw payloads (info messages) to all clients.
	Broadcast chan []byte

	// Broadcast typed events to all clients except sessions of the
	// originating user.
	BroadcastEvents chan []*types.Event

	// Register a new client to the hub.
	Register chan *Client

	// Unregister a client from the hub.
	Unregister chan *Client

	// keep the chat history in a ring buffer
	History                  chan *types.Event
	historyStart, historyEnd *ring.Ring

	// latest state-bearing event per event name, replayed to new sessions
	state   map[string]*types.Event
	stateMu sync.RWMutex

	Presence *Presence

	// global configuration
	Cfg *config.Config

	// persistence
	Persister persistence.Persister

	doneChan chan struct{}

	// mutex for manipulating the clients
	sync.RWMutex
}

func NewHub(room *types.Room, cfg *config.Config, persister persistence.Persister) *Hub {
	historySize := defaultHistorySize
	if cfg.HistoryConfig.HistorySize > 0 {
		historySize = cfg.HistoryConfig.HistorySize
	}
	history := ring.New(historySize)
	hub := &Hub{
		Room:            room,
		clients:         make(map[*Client]struct{}),
		Broadcast:       make(chan []byte, broadcastChannelSize),
		BroadcastEvents: make(chan []*types.Event, broadcastChannelSize),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		History:         make(chan *types.Event, historyChannelSize),
		historyStart:    history,
		historyEnd:      history,
		state:           make(map[string]*types.Event),
		Presence:        NewPresence(),
		Cfg:             cfg,
		Persister:       persister,
		doneChan:        make(chan struct{}),
	}
	if persister != nil {
		var t time.Time
		n := time.Now().Add(time.Minute)
		events, err := persister.GetEventHistory(room.Id, t, n, 0, historySize)
		if err != nil {
			globals.AppLogger.Error("could not load persisted events", "error", err)
		}
		for _, evt := range events {
			hub.historyEnd.Value = evt
			hub.historyEnd = hub.historyEnd.Next()
			if hub.historyEnd == hub.historyStart {
				hub.historyStart = hub.historyStart.Next()
			}
		}
	}
	return hub
}

// NoClients returns the number of connected sessions (not deduplicated by
// user, see Presence.NoActive for that).
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// Run is the main hub event loop handling register, unregister and broadcast
// events. Presence sweeping and room activity persistence run on a cron
// runner owned by the loop.
func (h *Hub) Run() {
	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	interval := h.Cfg.PresenceConfig.Interval()
	entryId, err := cronRunner.AddFunc("@every "+interval.String(), func() {
		h.sweepPresence()
	})
	if err != nil {
		panic(err)
	}
	defer cronRunner.Remove(entryId)
	entryId, err = cronRunner.AddFunc("@every 1m", func() {
		h.persistActivity()
	})
	if err != nil {
		panic(err)
	}
	defer cronRunner.Remove(entryId)
	defer cronRunner.Stop()
	cronRunner.Start()
	for {
		select {
		case <-h.doneChan:
			return

		case client := <-h.Register:
			h.Lock()
			h.clients[client] = struct{}{}
			h.Unlock()
			// the snapshot is queued here, inside the loop, so it precedes
			// every event dispatched after registration
			client.SendSnapshot()
			if h.Presence.Join(client.user) {
				h.sendPresenceChange(types.PresenceActionJoin, client.user)
			}
			go h.SendInfo(h.GetInfo())

		case client := <-h.Unregister:
			h.RLock()
			_, ok := h.clients[client]
			h.RUnlock()
			if !ok {
				continue
			}
			h.Lock()
			delete(h.clients, client)
			if client.conn != nil {
				client.conn.Close()
			}
			// wait for all loops and pending write operations before the
			// send channel can be closed safely
			client.Wait()
			close(client.Send)
			h.Unlock()
			client.setState(SessionClosed)
			if h.Presence.Leave(client.user.Id) {
				h.sendPresenceChange(types.PresenceActionLeave, client.user)
			}
			go h.SendInfo(h.GetInfo())

		case message := <-h.Broadcast:
			// non-blocking, same as the typed fan-out: a stalled session
			// must never wedge the loop (or Unregister) behind its buffer
			h.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					globals.AppLogger.Warn("send channel full, dropping message", "user", client.user.Id)
				}
			}
			h.RUnlock()

		case events := <-h.BroadcastEvents:
			for _, event := range events {
				h.dispatchEvent(event)
			}

		case event := <-h.History:
			h.Lock()
			h.historyEnd.Value = event
			h.historyEnd = h.historyEnd.Next()
			if h.historyEnd == h.historyStart {
				h.historyStart = h.historyStart.Next()
			}
			h.Unlock()
			if h.Persister != nil {
				if err := h.Persister.StoreEvents([]*types.Event{event}); err != nil {
					globals.AppLogger.Error("could not persist event", "error", err)
				}
			}
		}
	}
}

// Close stops the run loop. Remaining clients are expected to be
// unregistered by their handlers.
func (h *Hub) Close() {
	close(h.doneChan)
}

// dispatchEvent delivers one event to all registered sessions except those
// of the originating user (echo suppression), honoring the event's target
// filter. Delivery happens inside the run loop, which preserves the
// per-publisher FIFO order; a session with a full send buffer is skipped
// (best-effort fan-out, the next debounced publish supersedes).
func (h *Hub) dispatchEvent(event *types.Event) {
	if event.IsStateBearing() {
		h.setState(event)
	}
	if event.Name == types.EventNameChat {
		h.History <- event
	}
	var prog *vm.Program
	if event.TargetFilter != "" {
		var err error
		prog, err = expr.Compile(event.TargetFilter, expr.Env(filter.Env{}))
		if err != nil {
			globals.AppLogger.Error("could not compile filter", "error", err)
		}
	}
	data, err := json.Marshal(types.WireEvent{Event: event})
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "error", err)
		return
	}
	h.RLock()
	defer h.RUnlock()
	for client := range h.clients {
		if client.user.Id == event.OriginId {
			continue
		}
		if !client.RunFilterEvent(event, prog) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			globals.AppLogger.Warn("send channel full, dropping event", "user", client.user.Id, "event", event.Name)
		}
	}
}

func (h *Hub) setState(event *types.Event) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	h.state[event.Name] = event
}

// GetSnapshot assembles the initial state pushed to a new session: the
// latest state-bearing events, the recent chat window and the active users
// with the requesting user's own id first.
func (h *Hub) GetSnapshot(selfId string) *types.Snapshot {
	h.stateMu.RLock()
	state := make(map[string]*types.Event, len(h.state))
	for name, evt := range h.state {
		state[name] = evt
	}
	h.stateMu.RUnlock()
	return &types.Snapshot{
		Room:        h.Room,
		State:       state,
		History:     h.GetHistory(),
		ActiveUsers: h.Presence.ListActive(selfId),
	}
}

func (h *Hub) GetHistory() []*types.Event {
	h.RLock()
	defer h.RUnlock()
	history := make([]*types.Event, 0)
	current := h.historyStart
	for ; current != h.historyEnd; current = current.Next() {
		history = append(history, current.Value.(*types.Event))
	}
	return history
}

func (h *Hub) GetInfo() types.InfoMessage {
	return types.InfoMessage{
		RoomName:      h.Room.Name,
		NoConnections: h.NoClients(),
	}
}

// SendInfo broadcasts hub statistics to all clients.
func (h *Hub) SendInfo(info types.InfoMessage) {
	msg, err := json.Marshal(types.WireInfoMessage{InfoMessage: &info})
	if err != nil {
		globals.AppLogger.Error("could not marshal ws info", "error", err)
		return
	}
	h.Broadcast <- msg
}

// sendPresenceChange emits a presence-change event on the broadcast channel.
// Presence events originate from the room itself, so no session discards
// them as an echo.
func (h *Hub) sendPresenceChange(action string, user *types.User) {
	payload := types.PresencePayload{
		Action:      action,
		UserId:      user.Id,
		Username:    user.Name,
		ActiveUsers: h.Presence.ListActive(""),
	}
	event, err := types.NewEvent(h.Room, nil, "", types.EventNamePresence, payload)
	if err != nil {
		globals.AppLogger.Error("could not create presence event", "error", err)
		return
	}
	go func() {
		h.BroadcastEvents <- []*types.Event{event}
	}()
}

// sweepPresence expires users whose heartbeat lapsed (implicit leave) and
// force-closes their remaining sessions.
func (h *Hub) sweepPresence() {
	expired := h.Presence.Sweep(h.Cfg.PresenceConfig.Timeout())
	for _, user := range expired {
		globals.AppLogger.Info("heartbeat lapsed, implicit leave", "user", user.Id, "room", h.Room.Id)
		h.sendPresenceChange(types.PresenceActionLeave, user)
		h.RLock()
		for client := range h.clients {
			if client.user.Id == user.Id {
				client.setState(SessionDisconnected)
				go client.CloseConn()
			}
		}
		h.RUnlock()
	}
}

// persistActivity stores the room's last activity timestamp while sessions
// are connected.
func (h *Hub) persistActivity() {
	if h.Persister == nil || h.NoClients() == 0 {
		return
	}
	h.Room.LastActive = time.Now()
	if err := h.Persister.StoreRoom(*h.Room); err != nil {
		globals.AppLogger.Error("could not persist room activity", "error", err)
	}
}
