package types

import (
	"time"

	"gorm.io/gorm"
)

// A Room is a named collaborative workspace. One ws.Hub is running per room,
// the Room itself is just the persisted part. The set of active users is not
// stored here, it lives in the hub's presence registry for as long as at
// least one session is connected.
type Room struct {
	Id         string         `json:"id" gorm:"primaryKey"`
	Name       string         `json:"name" gorm:"uniqueIndex"`
	OwnerId    string         `json:"owner_id"`
	Owner      *User          `json:"owner,omitempty"`
	Tags       JSONStringMap  `json:"tags"`
	LastActive time.Time      `json:"last_active"`
	CreatedAt  time.Time      `json:"-"`
	UpdatedAt  time.Time      `json:"-"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
