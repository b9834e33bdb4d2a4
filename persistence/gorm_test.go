package persistence

import (
	"path/filepath"
	"testing"

	"github.com/tcriess/lightspeed-code/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestGormMigration(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrator().AutoMigrate(&types.User{}, &types.Room{}, &types.File{}, &types.Event{}); err != nil {
		t.Fatal(err)
	}
	room := types.Room{Id: "r-1", Name: "demo", Tags: map[string]string{"hello": "123"}}
	if err := db.Create(&room).Error; err != nil {
		t.Fatal(err)
	}
}
