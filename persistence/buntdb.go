package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/types"
	"github.com/tidwall/buntdb"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &BuntDBPersist{db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("eventsts", "event:*", buntdb.IndexJSON("created"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return db, nil
}

func translateErr(err error) error {
	if err == buntdb.ErrNotFound {
		return ErrNotFound
	}
	return err
}

func (p *BuntDBPersist) setJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
}

func (p *BuntDBPersist) getJSON(key string, v interface{}) error {
	err := p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), v)
	})
	return translateErr(err)
}

func (p *BuntDBPersist) StoreUser(user types.User) error {
	if user.Id == "" {
		return fmt.Errorf("no user id")
	}
	err := p.setJSON("user:"+user.Id, user)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("username:"+user.Name, user.Id, nil)
		return err
	})
}

func (p *BuntDBPersist) GetUser(user *types.User) error {
	if user.Id == "" {
		return fmt.Errorf("no user id")
	}
	return p.getJSON("user:"+user.Id, user)
}

func (p *BuntDBPersist) GetUserByName(name string) (*types.User, error) {
	user := &types.User{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		id, err := tx.Get("username:" + name)
		if err != nil {
			return err
		}
		raw, err := tx.Get("user:" + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), user)
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return user, nil
}

func (p *BuntDBPersist) GetUsers() ([]*types.User, error) {
	users := make([]*types.User, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("user:*", func(key, val string) bool {
			user := &types.User{}
			if err := json.Unmarshal([]byte(val), user); err == nil {
				users = append(users, user)
			}
			return true
		})
	})
	return users, err
}

func (p *BuntDBPersist) DeleteUser(user *types.User) error {
	if user.Id == "" {
		return fmt.Errorf("no user id")
	}
	err := p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("user:" + user.Id)
		if user.Name != "" {
			tx.Delete("username:" + user.Name)
		}
		return err
	})
	return translateErr(err)
}

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	err := p.setJSON("room:"+room.Id, room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("roomname:"+room.Name, room.Id, nil)
		return err
	})
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	return p.getJSON("room:"+room.Id, room)
}

func (p *BuntDBPersist) GetRoomByName(name string) (*types.Room, error) {
	room := &types.Room{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		id, err := tx.Get("roomname:" + name)
		if err != nil {
			return err
		}
		raw, err := tx.Get("room:" + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), room)
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return room, nil
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, val string) bool {
			room := &types.Room{}
			if err := json.Unmarshal([]byte(val), room); err == nil {
				rooms = append(rooms, room)
			}
			return true
		})
	})
	return rooms, err
}

func (p *BuntDBPersist) DeleteRoom(room *types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	err := p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("room:" + room.Id)
		if room.Name != "" {
			tx.Delete("roomname:" + room.Name)
		}
		return err
	})
	return translateErr(err)
}

func fileKey(roomId, name string) string {
	return "file:" + roomId + ":" + name
}

func (p *BuntDBPersist) StoreFile(file *types.File) error {
	if file.RoomId == "" || file.Name == "" {
		return fmt.Errorf("no file room id or name")
	}
	now := time.Now()
	err := p.db.Update(func(tx *buntdb.Tx) error {
		if raw, err := tx.Get(fileKey(file.RoomId, file.Name)); err == nil {
			existing := &types.File{}
			if err := json.Unmarshal([]byte(raw), existing); err == nil {
				// keep the original id and author on upsert
				file.Id = existing.Id
				file.AuthorId = existing.AuthorId
				file.CreatedAt = existing.CreatedAt
			}
		} else {
			file.CreatedAt = now
		}
		file.UpdatedAt = now
		data, err := json.Marshal(file)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(fileKey(file.RoomId, file.Name), string(data), nil); err != nil {
			return err
		}
		_, _, err = tx.Set("fileid:"+file.Id, fileKey(file.RoomId, file.Name), nil)
		return err
	})
	return err
}

func (p *BuntDBPersist) GetFile(file *types.File) error {
	if file.Id == "" {
		return fmt.Errorf("no file id")
	}
	err := p.db.View(func(tx *buntdb.Tx) error {
		key, err := tx.Get("fileid:" + file.Id)
		if err != nil {
			return err
		}
		raw, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), file)
	})
	return translateErr(err)
}

func (p *BuntDBPersist) GetRoomFiles(roomId string) ([]*types.File, error) {
	files := make([]*types.File, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("file:"+roomId+":*", func(key, val string) bool {
			file := &types.File{}
			if err := json.Unmarshal([]byte(val), file); err == nil {
				files = append(files, file)
			}
			return true
		})
	})
	return files, err
}

func (p *BuntDBPersist) DeleteFile(file *types.File) error {
	if file.Id == "" {
		return fmt.Errorf("no file id")
	}
	err := p.db.Update(func(tx *buntdb.Tx) error {
		key, err := tx.Get("fileid:" + file.Id)
		if err != nil {
			return err
		}
		if _, err := tx.Delete(key); err != nil {
			return err
		}
		_, err = tx.Delete("fileid:" + file.Id)
		return err
	})
	return translateErr(err)
}

func (p *BuntDBPersist) StoreEvents(events []*types.Event) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		for _, event := range events {
			msg, err := json.Marshal(event)
			if err != nil {
				globals.AppLogger.Error("could not marshal event", "error", err)
				return err
			}
			_, _, err = tx.Set("event:"+event.RoomId+":"+event.Id, string(msg), nil)
			if err != nil {
				globals.AppLogger.Error("could not store event", "error", err)
				return err
			}
		}
		return nil
	})
}

// GetEventHistory returns a slice of events from db.
//
// Use fromTs/toTs to restrict the time range, and fromIdx/maxCount for
// pagination. The resulting events have the "History" flag set.
func (p *BuntDBPersist) GetEventHistory(roomId string, fromTs, toTs time.Time, fromIdx, maxCount int) ([]*types.Event, error) {
	events := make([]*types.Event, 0)

	fromCond := fmt.Sprintf(`{"created":"%s"}`, fromTs.In(time.UTC).Format(time.RFC3339))
	toCond := fmt.Sprintf(`{"created":"%s"}`, toTs.In(time.UTC).Format(time.RFC3339))
	prefix := "event:" + roomId + ":"

	err := p.db.View(func(tx *buntdb.Tx) error {
		currentNo := -1
		count := 0
		return tx.DescendRange("eventsts", toCond, fromCond, func(key, val string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			currentNo++
			if currentNo < fromIdx {
				return true
			}
			event := &types.Event{}
			if err := json.Unmarshal([]byte(val), event); err == nil {
				event.History = true
				events = append(events, event)
			}
			count++
			return maxCount <= 0 || count < maxCount
		})
	})
	// oldest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
