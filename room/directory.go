package room

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/types"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNameTaken    = errors.New("room name taken")
)

// Directory maps human room names to stable room ids, enforces name
// uniqueness and tracks the per-user visit history. It owns no live state,
// that is the hub's job, it is the authority on which rooms exist.
type Directory struct {
	persister persistence.Persister

	// serializes create operations so that concurrent creates of the same
	// name see exactly one winner
	mu sync.Mutex
}

func NewDirectory(persister persistence.Persister) *Directory {
	if persister == nil {
		panic("room directory requires a persister")
	}
	return &Directory{persister: persister}
}

// CreateRoom creates a room with a fresh immutable id. Name uniqueness is
// all-or-nothing: under concurrent identical requests exactly one caller
// wins, the others receive ErrNameTaken.
func (d *Directory) CreateRoom(name string, creator *types.User) (*types.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.persister.GetRoomByName(name)
	if err == nil {
		return nil, ErrNameTaken
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}
	room := &types.Room{
		Id:         uuid.NewString(),
		Name:       name,
		Tags:       make(map[string]string),
		LastActive: time.Now(),
	}
	if creator != nil {
		room.OwnerId = creator.Id
	}
	if err := d.persister.StoreRoom(*room); err != nil {
		return nil, err
	}
	return room, nil
}

// ResolveRoom looks up a room by its id.
func (d *Directory) ResolveRoom(roomId string) (*types.Room, error) {
	room := &types.Room{Id: roomId}
	err := d.persister.GetRoom(room)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ResolveRoomByName looks up a room by its unique name.
func (d *Directory) ResolveRoomByName(name string) (*types.Room, error) {
	room, err := d.persister.GetRoomByName(name)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func (d *Directory) ListRooms() ([]*types.Room, error) {
	return d.persister.GetRooms()
}

// RecordVisit promotes roomId to the most recent position of the user's
// visit history (bounded MRU list, see types.User.RecordVisit).
func (d *Directory) RecordVisit(userId, roomId string) error {
	user := &types.User{Id: userId}
	if err := d.persister.GetUser(user); err != nil {
		return err
	}
	user.RecordVisit(roomId)
	return d.persister.StoreUser(*user)
}

// ListRoomsForUser resolves the user's visit history, most recent first.
// Rooms deleted since the visit are silently skipped.
func (d *Directory) ListRoomsForUser(userId string) ([]*types.Room, error) {
	user := &types.User{Id: userId}
	if err := d.persister.GetUser(user); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	rooms := make([]*types.Room, 0, len(user.Rooms))
	for i := len(user.Rooms) - 1; i >= 0; i-- {
		room, err := d.ResolveRoom(user.Rooms[i])
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Touch updates the room's last activity timestamp.
func (d *Directory) Touch(roomId string) error {
	room, err := d.ResolveRoom(roomId)
	if err != nil {
		return err
	}
	room.LastActive = time.Now()
	return d.persister.StoreRoom(*room)
}
