package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/types"
)

func testGuard(t *testing.T, expiry time.Duration) *Guard {
	t.Helper()
	cfg := &config.Config{AuthConfig: config.AuthConfig{Secret: "test-secret", TokenExpiry: expiry}}
	g, err := NewGuard(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestIssueAndValidateToken(t *testing.T) {
	g := testGuard(t, time.Hour)
	user := &types.User{Id: "u-1", Name: "alice"}

	token, err := g.IssueToken(user)
	assert.NoError(t, err)

	userId, err := g.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "u-1", userId)

	// second validation is served from the cache
	userId, err = g.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "u-1", userId)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	g := testGuard(t, time.Hour)

	_, err := g.ValidateToken("")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = g.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	g := testGuard(t, time.Hour)
	other := testGuard(t, time.Hour)
	other.secret = []byte("other-secret")

	token, err := other.IssueToken(&types.User{Id: "u-1"})
	assert.NoError(t, err)

	_, err = g.ValidateToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateTokenWithoutExpiry(t *testing.T) {
	g := testGuard(t, time.Hour)

	// a hand-minted token signed with the right secret but missing the exp
	// claim must be rejected, not crash the request
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-1"}).
		SignedString([]byte("test-secret"))
	assert.NoError(t, err)

	_, err = g.ValidateToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateTokenExpiry(t *testing.T) {
	g := testGuard(t, time.Hour)
	g.expiry = -time.Minute // token is already expired at issue time

	token, err := g.IssueToken(&types.User{Id: "u-1"})
	assert.NoError(t, err)

	_, err = g.ValidateToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	assert.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter3"), ErrUnauthorized)
}
