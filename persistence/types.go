package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/types"
)

// ErrNotFound is returned by all Get* methods when no matching record
// exists, regardless of the backend in use.
var ErrNotFound = errors.New("not found")

type Persister interface {
	StoreUser(types.User) error
	GetUser(*types.User) error
	GetUserByName(string) (*types.User, error)
	GetUsers() ([]*types.User, error)
	DeleteUser(*types.User) error

	StoreRoom(types.Room) error
	GetRoom(*types.Room) error
	GetRoomByName(string) (*types.Room, error)
	GetRooms() ([]*types.Room, error)
	DeleteRoom(*types.Room) error

	// StoreFile upserts by (RoomId, Name): an existing file keeps its id and
	// author, content and language are overwritten. The final state is
	// written back into the argument.
	StoreFile(*types.File) error
	GetFile(*types.File) error
	GetRoomFiles(string) ([]*types.File, error)
	DeleteFile(*types.File) error

	StoreEvents([]*types.Event) error
	// GetEventHistory returns the newest maxCount events of the room between
	// fromTs and toTs, skipping fromIdx, in ascending Created order.
	GetEventHistory(roomId string, fromTs, toTs time.Time, fromIdx, maxCount int) ([]*types.Event, error)

	Close() error
}

// NewPersister dispatches on the configured persistence type. A missing
// configuration yields a nil persister (in-memory operation only).
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "":
		return nil, nil
	case "buntdb":
		return NewBuntPersister(cfg)
	case "sqlite", "postgres":
		return NewGormPersister(cfg)
	}
	return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}
