package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned for any bad, expired or missing credential.
// Callers must not touch presence or broadcast state when they see it.
var ErrUnauthorized = errors.New("unauthorized")

const tokenCacheSize = 1024

// Guard issues and validates the session tokens required by every
// session-affecting operation. Successfully validated tokens are kept in an
// LRU cache so the signature check is not repeated on every request.
type Guard struct {
	secret []byte
	expiry time.Duration
	cache  *lru.Cache
}

type cachedToken struct {
	userId string
	expiry time.Time
}

func NewGuard(cfg *config.Config) (*Guard, error) {
	cache, err := lru.New(tokenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Guard{
		secret: []byte(cfg.AuthConfig.Secret),
		expiry: cfg.AuthConfig.Expiry(),
		cache:  cache,
	}, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrUnauthorized
	}
	return nil
}

// IssueToken creates a signed token for the given user.
func (g *Guard) IssueToken(user *types.User) (string, error) {
	if len(g.secret) == 0 {
		return "", errors.New("no auth secret configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// ValidateToken resolves a token to a user id, ErrUnauthorized otherwise.
func (g *Guard) ValidateToken(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	if v, ok := g.cache.Get(token); ok {
		ct := v.(cachedToken)
		if time.Now().Before(ct.expiry) {
			return ct.userId, nil
		}
		g.cache.Remove(token)
		return "", ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return g.secret, nil
	})
	// tokens without an expiry are rejected outright: the parser only
	// validates exp when it is present, and the cache needs a bound
	if err != nil || !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", ErrUnauthorized
	}
	g.cache.Add(token, cachedToken{userId: claims.Subject, expiry: claims.ExpiresAt.Time})
	return claims.Subject, nil
}
