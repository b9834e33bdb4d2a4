package types

import "encoding/json"

type omit *struct{}

// WireEvent wraps an Event for transmission: the event name moves into the
// envelope, the target filter never leaves the server.
type WireEvent struct {
	*Event
	Name         omit `json:"name,omitempty"`
	TargetFilter omit `json:"target_filter,omitempty"`
}

func (e WireEvent) MarshalJSON() ([]byte, error) {
	type localWireEvent WireEvent
	data, err := json.Marshal(localWireEvent(e))
	if err != nil {
		return nil, err
	}
	m := WebsocketMessage{
		Event: e.Event.Name,
		Data:  data,
	}
	return json.Marshal(m)
}

// Snapshot is pushed to a session right after it registers, before any live
// event. State holds the latest state-bearing event per event name, History
// the capped recent chat window, ActiveUsers the presence list with the
// receiving user's own name first.
type Snapshot struct {
	Room        *Room             `json:"room"`
	State       map[string]*Event `json:"state"`
	History     []*Event          `json:"history"`
	ActiveUsers []string          `json:"active_users"`
}

type WireSnapshot struct {
	*Snapshot
}

func (s WireSnapshot) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(s.Snapshot)
	if err != nil {
		return nil, err
	}
	m := WebsocketMessage{
		Event: "snapshot",
		Data:  data,
	}
	return json.Marshal(m)
}

// InfoMessage carries room statistics broadcast on membership changes.
type InfoMessage struct {
	RoomName      string `json:"room_name"`
	NoConnections int    `json:"no_connections"`
}

type WireInfoMessage struct {
	*InfoMessage
}

func (i WireInfoMessage) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(i.InfoMessage)
	if err != nil {
		return nil, err
	}
	m := WebsocketMessage{
		Event: "info",
		Data:  data,
	}
	return json.Marshal(m)
}
