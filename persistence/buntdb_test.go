package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/types"
)

func newTestPersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	p, err := NewBuntPersister(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestStoreGetRoomByName(t *testing.T) {
	p := newTestPersister(t)

	room := types.Room{Id: "r-1", Name: "demo", OwnerId: "u-1", Tags: map[string]string{}}
	err := p.StoreRoom(room)
	assert.NoError(t, err)

	got, err := p.GetRoomByName("demo")
	assert.NoError(t, err)
	assert.Equal(t, "r-1", got.Id)

	_, err = p.GetRoomByName("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileUpsertKeepsIdAndAuthor(t *testing.T) {
	p := newTestPersister(t)

	first := &types.File{Id: "f-1", RoomId: "r-1", Name: "main.py", Content: "print(1)", Language: "python", AuthorId: "alice"}
	assert.NoError(t, p.StoreFile(first))

	second := &types.File{Id: "f-2", RoomId: "r-1", Name: "main.py", Content: "print(2)", Language: "python", AuthorId: "bob"}
	assert.NoError(t, p.StoreFile(second))

	// overwrite, not duplicate
	files, err := p.GetRoomFiles("r-1")
	assert.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "f-1", files[0].Id)
	assert.Equal(t, "alice", files[0].AuthorId)
	assert.Equal(t, "print(2)", files[0].Content)

	got := &types.File{Id: "f-1"}
	assert.NoError(t, p.GetFile(got))
	assert.Equal(t, "main.py", got.Name)

	assert.NoError(t, p.DeleteFile(&types.File{Id: "f-1"}))
	files, err = p.GetRoomFiles("r-1")
	assert.NoError(t, err)
	assert.Len(t, files, 0)
}

func TestEventHistoryScopedToRoom(t *testing.T) {
	p := newTestPersister(t)

	room1 := &types.Room{Id: "r-1", Name: "one"}
	room2 := &types.Room{Id: "r-2", Name: "two"}
	origin := &types.User{Id: "alice", Name: "alice"}

	var events []*types.Event
	for i, room := range []*types.Room{room1, room1, room2} {
		evt, err := types.NewEvent(room, origin, "", types.EventNameChat, types.ChatPayload{Content: string(rune('a' + i)), Username: "alice"})
		if err != nil {
			t.Fatal(err)
		}
		evt.Created = time.Now().Add(time.Duration(i) * time.Millisecond)
		events = append(events, evt)
	}
	assert.NoError(t, p.StoreEvents(events))

	var none time.Time
	hist, err := p.GetEventHistory("r-1", none, time.Now().Add(time.Minute), 0, 10)
	assert.NoError(t, err)
	assert.Len(t, hist, 2)
	for _, e := range hist {
		assert.Equal(t, "r-1", e.RoomId)
		assert.True(t, e.History)
	}
	// ascending order
	assert.True(t, !hist[1].Created.Before(hist[0].Created))
}

func TestUserRoundTrip(t *testing.T) {
	p := newTestPersister(t)

	user := types.User{Id: "u-1", Name: "alice", Email: "alice@example.com"}
	user.RecordVisit("r-1")
	assert.NoError(t, p.StoreUser(user))

	got, err := p.GetUserByName("alice")
	assert.NoError(t, err)
	assert.Equal(t, "u-1", got.Id)
	assert.Equal(t, types.JSONStringSlice{"r-1"}, got.Rooms)
}
