package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tcriess/lightspeed-code/types"
)

func TestPresenceDuplicateSessions(t *testing.T) {
	p := NewPresence()
	alice := &types.User{Id: "u-1", Name: "alice"}

	assert.True(t, p.Join(alice), "first session makes the user active")
	assert.False(t, p.Join(alice), "second tab does not change the active set")
	assert.Equal(t, 1, p.NoActive())

	assert.False(t, p.Leave("u-1"), "one session remains")
	assert.True(t, p.Leave("u-1"), "last session removes the user")
	assert.Equal(t, 0, p.NoActive())

	// leaving an unknown user is a no-op
	assert.False(t, p.Leave("u-1"))
}

func TestPresenceSweep(t *testing.T) {
	p := NewPresence()
	alice := &types.User{Id: "u-1", Name: "alice"}
	bob := &types.User{Id: "u-2", Name: "bob"}
	p.Join(alice)
	p.Join(bob)

	time.Sleep(30 * time.Millisecond)
	p.Heartbeat("u-2")

	expired := p.Sweep(20 * time.Millisecond)
	assert.Len(t, expired, 1)
	assert.Equal(t, "u-1", expired[0].Id)
	assert.Equal(t, []string{"u-2"}, p.ListActive(""))

	// heartbeat of a swept user is a no-op, the user stays gone
	p.Heartbeat("u-1")
	assert.Equal(t, 1, p.NoActive())
}

func TestPresenceListActiveSelfFirst(t *testing.T) {
	p := NewPresence()
	p.Join(&types.User{Id: "u-1"})
	p.Join(&types.User{Id: "u-2"})
	p.Join(&types.User{Id: "u-3"})

	assert.Equal(t, []string{"u-2", "u-1", "u-3"}, p.ListActive("u-2"))
	assert.Equal(t, []string{"u-1", "u-2", "u-3"}, p.ListActive(""))
	// an id not in the set is simply absent
	assert.Equal(t, []string{"u-1", "u-2", "u-3"}, p.ListActive("u-9"))
}
