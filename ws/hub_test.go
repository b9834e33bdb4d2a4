package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/types"
)

func newTestHub(t *testing.T, cfg *config.Config) *Hub {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	room := &types.Room{Id: "r-1", Name: "testroom"}
	hub := NewHub(room, cfg, nil)
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func newTestClient(t *testing.T, hub *Hub, user *types.User) *Client {
	t.Helper()
	client := NewClient(hub, nil, user, make(chan struct{}))
	hub.Register <- client
	return client
}

// nextEvent reads the client's send channel until a message with the given
// event name arrives, skipping unrelated traffic (info, presence).
func nextEvent(t *testing.T, c *Client, name string) *types.WebsocketMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.Send:
			msg := &types.WebsocketMessage{}
			if err := json.Unmarshal(raw, msg); err != nil {
				t.Fatalf("could not unmarshal ws message: %s", err)
			}
			if msg.Event == name {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %q message received", name)
		}
	}
}

// assertNoEvent asserts that no message with the given event name arrives
// within the wait period.
func assertNoEvent(t *testing.T, c *Client, name string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case raw := <-c.Send:
			msg := &types.WebsocketMessage{}
			if err := json.Unmarshal(raw, msg); err != nil {
				t.Fatalf("could not unmarshal ws message: %s", err)
			}
			if msg.Event == name {
				t.Fatalf("unexpected %q message: %s", name, raw)
			}
		case <-deadline:
			return
		}
	}
}

// nextPresence reads presence-change events until one matching action and
// user id arrives.
func nextPresence(t *testing.T, c *Client, action, userId string) types.PresencePayload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := nextEvent(t, c, types.EventNamePresence)
		event := &types.Event{}
		if err := json.Unmarshal(msg.Data, event); err != nil {
			t.Fatal(err)
		}
		payload := types.PresencePayload{}
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.Action == action && payload.UserId == userId {
			return payload
		}
	}
	t.Fatalf("no presence %s for %s", action, userId)
	return types.PresencePayload{}
}

func publish(t *testing.T, hub *Hub, origin *types.User, name string, payload interface{}) *types.Event {
	t.Helper()
	event, err := types.NewEvent(hub.Room, origin, "", name, payload)
	if err != nil {
		t.Fatal(err)
	}
	hub.BroadcastEvents <- []*types.Event{event}
	return event
}

func TestHubEchoSuppression(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	s1 := newTestClient(t, hub, alice)
	s2 := newTestClient(t, hub, alice) // second tab of the same user
	s3 := newTestClient(t, hub, bob)

	publish(t, hub, alice, types.EventNameCode, types.CodePayload{Code: "print(1)"})

	msg := nextEvent(t, s3, types.EventNameCode)
	event := &types.Event{}
	assert.NoError(t, json.Unmarshal(msg.Data, event))
	assert.Equal(t, "u-a", event.OriginId)

	// no session of the originating user sees the echo, including the tab
	// that did not publish
	assertNoEvent(t, s1, types.EventNameCode, 100*time.Millisecond)
	assertNoEvent(t, s2, types.EventNameCode, 100*time.Millisecond)
}

func TestHubPerPublisherOrdering(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	newTestClient(t, hub, alice)
	sub := newTestClient(t, hub, bob)

	codes := []string{"v1", "v2", "v3", "v4", "v5"}
	for _, code := range codes {
		publish(t, hub, alice, types.EventNameCode, types.CodePayload{Code: code})
	}

	for _, want := range codes {
		msg := nextEvent(t, sub, types.EventNameCode)
		event := &types.Event{}
		assert.NoError(t, json.Unmarshal(msg.Data, event))
		payload := types.CodePayload{}
		assert.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, want, payload.Code)
	}
}

func TestHubSnapshot(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	sub := newTestClient(t, hub, alice)
	publish(t, hub, bob, types.EventNameLanguage, types.LanguagePayload{Language: "javascript"})
	nextEvent(t, sub, types.EventNameLanguage)
	publish(t, hub, bob, types.EventNameLanguage, types.LanguagePayload{Language: "python"})
	nextEvent(t, sub, types.EventNameLanguage)

	newTestClient(t, hub, bob)
	nextPresence(t, sub, types.PresenceActionJoin, "u-b")

	snapshot := hub.GetSnapshot("u-b")
	// only the latest event per name makes up the state
	assert.Len(t, snapshot.State, 1)
	payload := types.LanguagePayload{}
	assert.NoError(t, json.Unmarshal(snapshot.State[types.EventNameLanguage].Payload, &payload))
	assert.Equal(t, "python", payload.Language)
	// the requesting user's own id comes first
	assert.Equal(t, []string{"u-b", "u-a"}, snapshot.ActiveUsers)
}

func TestHubSnapshotHistoryFiltered(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}
	carol := &types.User{Id: "u-c", Name: "carol"}

	sub := newTestClient(t, hub, alice)
	nextEvent(t, sub, "snapshot")

	// a chat message targeted at alice only
	event, err := types.NewEvent(hub.Room, bob, `Target.User.Id=="u-a"`, types.EventNameChat, types.ChatPayload{Content: "psst", Username: "bob"})
	assert.NoError(t, err)
	hub.BroadcastEvents <- []*types.Event{event}
	nextEvent(t, sub, types.EventNameChat)
	assert.Eventually(t, func() bool {
		return len(hub.GetHistory()) == 1
	}, time.Second, 10*time.Millisecond)

	// carol's snapshot replays the history without the foreign message
	out := newTestClient(t, hub, carol)
	msg := nextEvent(t, out, "snapshot")
	snapshot := types.Snapshot{}
	assert.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	assert.Empty(t, snapshot.History)

	// a second tab of alice gets it
	tab := newTestClient(t, hub, alice)
	msg = nextEvent(t, tab, "snapshot")
	snapshot = types.Snapshot{}
	assert.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	assert.Len(t, snapshot.History, 1)
}

func TestHubBroadcastSkipsStalledSession(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	stalled := NewClient(hub, nil, alice, make(chan struct{}))
	stalled.Send = make(chan []byte, 1)
	stalled.Send <- []byte("{}") // buffer full, nobody draining
	hub.Register <- stalled

	other := newTestClient(t, hub, bob)

	hub.SendInfo(hub.GetInfo())
	nextEvent(t, other, "info")

	// the full session neither blocks the loop nor wedges unregister
	hub.Unregister <- other
	assert.Eventually(t, func() bool {
		return hub.NoClients() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHubChatHistory(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	sub := newTestClient(t, hub, bob)
	publish(t, hub, alice, types.EventNameChat, types.ChatPayload{Content: "hi", Username: "alice"})
	nextEvent(t, sub, types.EventNameChat)

	assert.Eventually(t, func() bool {
		history := hub.GetHistory()
		return len(history) == 1 && history[0].Name == types.EventNameChat
	}, time.Second, 10*time.Millisecond)

	// chat is part of the history window, not of the replayed state
	snapshot := hub.GetSnapshot("u-b")
	assert.Empty(t, snapshot.State)
	assert.Len(t, snapshot.History, 1)
}

func TestHubPresenceChangeOnJoinAndLeave(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	sub := newTestClient(t, hub, alice)

	joiner := newTestClient(t, hub, bob)
	payload := nextPresence(t, sub, types.PresenceActionJoin, "u-b")
	assert.ElementsMatch(t, []string{"u-a", "u-b"}, payload.ActiveUsers)

	hub.Unregister <- joiner
	payload = nextPresence(t, sub, types.PresenceActionLeave, "u-b")
	assert.Equal(t, []string{"u-a"}, payload.ActiveUsers)
}

func TestHubHeartbeatLapse(t *testing.T) {
	cfg := &config.Config{
		PresenceConfig: config.PresenceConfig{
			HeartbeatInterval: 50 * time.Millisecond,
			TimeoutFactor:     1,
		},
	}
	hub := newTestHub(t, cfg)
	alice := &types.User{Id: "u-a", Name: "alice"}
	bob := &types.User{Id: "u-b", Name: "bob"}

	newTestClient(t, hub, alice)
	sub := newTestClient(t, hub, bob)

	// bob keeps heartbeating, alice goes silent
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hub.Presence.Heartbeat("u-b")
			case <-stop:
				return
			}
		}
	}()

	payload := nextPresence(t, sub, types.PresenceActionLeave, "u-a")
	assert.Equal(t, []string{"u-b"}, payload.ActiveUsers)
	assert.Equal(t, 1, hub.Presence.NoActive())
}
