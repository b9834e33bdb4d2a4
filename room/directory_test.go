package room

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/types"
)

func newTestDirectory(t *testing.T) (*Directory, persistence.Persister) {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	p, err := persistence.NewBuntPersister(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return NewDirectory(p), p
}

func TestCreateRoomNameTaken(t *testing.T) {
	d, _ := newTestDirectory(t)
	creator := &types.User{Id: "u-1", Name: "alice"}

	room, err := d.CreateRoom("demo", creator)
	assert.NoError(t, err)
	assert.NotEmpty(t, room.Id)
	assert.Equal(t, "u-1", room.OwnerId)

	_, err = d.CreateRoom("demo", creator)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestCreateRoomConcurrentSingleWinner(t *testing.T) {
	d, _ := newTestDirectory(t)
	creator := &types.User{Id: "u-1", Name: "alice"}

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.CreateRoom("contested", creator)
		}(i)
	}
	wg.Wait()

	wins, taken := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case err == ErrNameTaken:
			taken++
		default:
			t.Fatalf("unexpected error: %s", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, taken)
}

func TestResolveRoomNotFound(t *testing.T) {
	d, _ := newTestDirectory(t)
	_, err := d.ResolveRoom("missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRecordVisitMRU(t *testing.T) {
	d, p := newTestDirectory(t)
	assert.NoError(t, p.StoreUser(types.User{Id: "u-1", Name: "alice"}))

	ids := make([]string, 0, 7)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		room, err := d.CreateRoom(name, nil)
		assert.NoError(t, err)
		ids = append(ids, room.Id)
		assert.NoError(t, d.RecordVisit("u-1", room.Id))
	}

	user := &types.User{Id: "u-1"}
	assert.NoError(t, p.GetUser(user))
	// capped at 5, oldest evicted first
	assert.Len(t, user.Rooms, types.RoomHistorySize)
	assert.Equal(t, types.JSONStringSlice(ids[2:]), user.Rooms)

	// revisiting promotes to the most recent position, no duplicate
	assert.NoError(t, d.RecordVisit("u-1", ids[3]))
	assert.NoError(t, p.GetUser(user))
	assert.Len(t, user.Rooms, types.RoomHistorySize)
	assert.Equal(t, ids[3], user.Rooms[len(user.Rooms)-1])
	seen := map[string]struct{}{}
	for _, id := range user.Rooms {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate entry %s", id)
		seen[id] = struct{}{}
	}

	rooms, err := d.ListRoomsForUser("u-1")
	assert.NoError(t, err)
	assert.Len(t, rooms, types.RoomHistorySize)
	assert.Equal(t, ids[3], rooms[0].Id) // most recent first
}
