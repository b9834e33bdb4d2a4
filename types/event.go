package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"gorm.io/datatypes"
)

// Event names as they appear on the wire. These double as the keys of the
// per-room state snapshot: for every state-bearing name the hub remembers
// the latest event and replays it to newly connecting sessions.
const (
	EventNameCode          = "code-update"
	EventNameLanguage      = "language-update"
	EventNameTerminals     = "terminals-update"
	EventNameFileSelection = "file-selection"
	EventNameChat          = "new-message"
	EventNamePresence      = "presence-change"
)

const (
	PresenceActionJoin  = "join"
	PresenceActionLeave = "leave"
)

// An Event is the single unit of the per-room broadcast channel. Every event
// carries the originating user (echo suppression discards events at sessions
// of the same user id) and an optional target filter expression which is
// evaluated per recipient.
type Event struct {
	Id           string         `json:"id" gorm:"primaryKey" hash:"ignore"`
	RoomId       string         `json:"room_id" gorm:"index"`
	Name         string         `json:"name" gorm:"index"`
	OriginId     string         `json:"origin_id"`
	OriginName   string         `json:"origin_name"`
	TargetFilter string         `json:"target_filter,omitempty"`
	Created      time.Time      `json:"created" gorm:"index"`
	History      bool           `json:"history" gorm:"-" hash:"ignore"`
	Payload      datatypes.JSON `json:"payload"`
}

// NewEvent builds an event originating from origin in room. payload is
// serialized into the event; the id is derived from the event contents.
func NewEvent(room *Room, origin *User, targetFilter, name string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	evt := &Event{
		RoomId:       room.Id,
		Name:         name,
		TargetFilter: targetFilter,
		Created:      time.Now(),
		Payload:      datatypes.JSON(data),
	}
	if origin != nil {
		evt.OriginId = origin.Id
		evt.OriginName = origin.Name
	}
	if err := evt.CreateId(); err != nil {
		return nil, err
	}
	return evt, nil
}

// CreateId derives the event id from a hash over the event contents.
func (e *Event) CreateId() error {
	h, err := hashstructure.Hash(e, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	e.Id = fmt.Sprintf("%016x", h)
	return nil
}

// IsStateBearing reports whether the latest event of this name makes up part
// of the room state replayed to new sessions.
func (e *Event) IsStateBearing() bool {
	switch e.Name {
	case EventNameCode, EventNameLanguage, EventNameTerminals, EventNameFileSelection:
		return true
	}
	return false
}

// The payload types, one per event name.

type CodePayload struct {
	Code string `json:"code"`
}

type LanguagePayload struct {
	Language string `json:"language"`
}

type TerminalPayload struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	IsLoading bool   `json:"is_loading"`
}

type FileSelectionPayload struct {
	File     *FileRef `json:"file"`
	Username string   `json:"username"`
}

type ChatPayload struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

type PresencePayload struct {
	Action      string   `json:"action"` // PresenceAction*
	UserId      string   `json:"user_id"`
	Username    string   `json:"username"`
	ActiveUsers []string `json:"active_users"`
}
