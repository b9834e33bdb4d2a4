package types

import "time"

// A File is a named code snapshot saved in a room. The upsert key is
// (RoomId, Name): saving an existing name overwrites content and language
// instead of creating a duplicate.
type File struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	RoomId    string    `json:"room_id" gorm:"uniqueIndex:idx_room_file"`
	Name      string    `json:"name" gorm:"uniqueIndex:idx_room_file"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	AuthorId  string    `json:"author_id"`
	Author    *User     `json:"author,omitempty" gorm:"foreignKey:AuthorId"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileRef is the lightweight reference broadcast on file selection.
type FileRef struct {
	Id       string `json:"id" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Language string `json:"language" mapstructure:"language"`
}
