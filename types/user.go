package types

import "time"

const RoomHistorySize = 5

type User struct {
	Id           string          `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"uniqueIndex"` // display name, unique
	Email        string          `json:"email" gorm:"uniqueIndex"`
	PasswordHash string          `json:"-"`
	Rooms        JSONStringSlice `json:"rooms"` // recently visited room ids, most recent last
	LastOnline   time.Time       `json:"last_online"`
}

// RecordVisit updates the user's recently-visited room list: an already
// present room id is moved to the end, and the list is truncated to the
// RoomHistorySize most recent entries.
func (u *User) RecordVisit(roomId string) {
	rooms := make(JSONStringSlice, 0, len(u.Rooms)+1)
	for _, id := range u.Rooms {
		if id != roomId {
			rooms = append(rooms, id)
		}
	}
	rooms = append(rooms, roomId)
	if len(rooms) > RoomHistorySize {
		rooms = rooms[len(rooms)-RoomHistorySize:]
	}
	u.Rooms = rooms
}
