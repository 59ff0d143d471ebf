package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName carries the token in browser and CLI requests.
	CookieName = "droptoken"
	// DefaultTokenTTL is how long an issued token stays valid.
	DefaultTokenTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
)

// Gate checks the board password and issues HS256 tokens. A gate built
// with an empty password lets every request through.
type Gate struct {
	hash   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewGate builds a gate for password, which may be plaintext or a
// bcrypt hash. The signing secret is derived from it, so changing the
// password invalidates outstanding tokens.
func NewGate(password string, ttl time.Duration) (*Gate, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	g := &Gate{ttl: ttl, now: time.Now}
	password = strings.TrimSpace(password)
	if password == "" {
		return g, nil
	}

	if IsHash(password) {
		g.hash = password
	} else {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		g.hash = hash
	}
	g.secret = []byte(password)
	return g, nil
}

// Enabled reports whether a password is required.
func (g *Gate) Enabled() bool {
	return g != nil && g.hash != ""
}

// Login checks candidate and returns a signed token.
func (g *Gate) Login(candidate string) (string, time.Time, error) {
	if !g.Enabled() {
		return "", time.Time{}, fmt.Errorf("login is disabled: no password configured")
	}
	if !VerifyPassword(g.hash, candidate) {
		return "", time.Time{}, ErrInvalidPassword
	}
	expires := g.now().Add(g.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(g.now()),
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify checks signature and expiry. A disabled gate accepts anything.
func (g *Gate) Verify(token string) error {
	if !g.Enabled() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ExpiresAt reads the expiry of a token without verifying it. The
// client uses it to warn before the server starts refusing requests.
func ExpiresAt(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Authenticated reports whether token is present and not yet expired.
// Tokens without an expiry claim count as valid.
func Authenticated(token string, now time.Time) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	expires, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return now.Before(expires)
}
