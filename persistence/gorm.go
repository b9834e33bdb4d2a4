package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.User{}, &types.Room{}, &types.File{}, &types.Event{})
	return db, nil
}

func gormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) StoreUser(user types.User) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&user).Error
}

func (p *GormPersist) GetUser(user *types.User) error {
	return gormErr(p.db.First(user).Error)
}

func (p *GormPersist) GetUserByName(name string) (*types.User, error) {
	user := &types.User{}
	err := p.db.Where("name = ?", name).First(user).Error
	if err != nil {
		return nil, gormErr(err)
	}
	return user, nil
}

func (p *GormPersist) GetUsers() ([]*types.User, error) {
	users := make([]*types.User, 0)
	err := p.db.Find(&users).Error
	return users, err
}

func (p *GormPersist) DeleteUser(user *types.User) error {
	return gormErr(p.db.Delete(user).Error)
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	return gormErr(p.db.First(room).Error)
}

func (p *GormPersist) GetRoomByName(name string) (*types.Room, error) {
	room := &types.Room{}
	err := p.db.Where("name = ?", name).First(room).Error
	if err != nil {
		return nil, gormErr(err)
	}
	return room, nil
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) DeleteRoom(room *types.Room) error {
	return gormErr(p.db.Delete(room).Error)
}

func (p *GormPersist) StoreFile(file *types.File) error {
	err := p.db.Transaction(func(tx *gorm.DB) error {
		existing := &types.File{}
		err := tx.Where("room_id = ? AND name = ?", file.RoomId, file.Name).First(existing).Error
		if err == nil {
			// upsert: keep the original id and author
			file.Id = existing.Id
			file.AuthorId = existing.AuthorId
			file.CreatedAt = existing.CreatedAt
			return tx.Model(existing).Updates(map[string]interface{}{
				"content":  file.Content,
				"language": file.Language,
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(file).Error
	})
	if err != nil {
		return err
	}
	return gormErr(p.db.Where("room_id = ? AND name = ?", file.RoomId, file.Name).First(file).Error)
}

func (p *GormPersist) GetFile(file *types.File) error {
	return gormErr(p.db.First(file).Error)
}

func (p *GormPersist) GetRoomFiles(roomId string) ([]*types.File, error) {
	files := make([]*types.File, 0)
	err := p.db.Where("room_id = ?", roomId).Order("updated_at DESC").Find(&files).Error
	return files, err
}

func (p *GormPersist) DeleteFile(file *types.File) error {
	return gormErr(p.db.Delete(file).Error)
}

func (p *GormPersist) StoreEvents(events []*types.Event) error {
	if len(events) == 0 {
		return nil
	}
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&events).Error
}

func (p *GormPersist) GetEventHistory(roomId string, fromTs, toTs time.Time, fromIdx, maxCount int) ([]*types.Event, error) {
	events := make([]*types.Event, 0)
	err := p.db.Where("room_id = ? AND created BETWEEN ? AND ?", roomId, fromTs, toTs).
		Order("created DESC").Limit(maxCount).Offset(fromIdx).Find(&events).Error
	if err != nil {
		return nil, err
	}
	// oldest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	for _, e := range events {
		e.History = true
	}
	return events, nil
}

func (p *GormPersist) Close() error {
	return nil
}
