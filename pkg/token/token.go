package token

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/dgrijalva/jwt-go"

	"workshop/pkg/claims"
)

var (
	ErrMissing = errors.New("access token missing")
	ErrInvalid = errors.New("access token invalid")
)

// Authenticator verifies and issues HS256 access tokens carrying {id, role}.
// It holds no mutable state and is safe for concurrent use.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(secret []byte, ttl time.Duration) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty secret")
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	return &Authenticator{secret: secret, ttl: ttl}, nil
}

func (a *Authenticator) keyFunc(t *jwt.Token) (interface{}, error) {
	method, ok := t.Method.(*jwt.SigningMethodHMAC)
	if !ok || method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return a.secret, nil
}

// Verify never retries; every failure other than an empty token is ErrInvalid.
func (a *Authenticator) Verify(raw string) (claims.Identity, error) {
	if raw == "" {
		return claims.Identity{}, ErrMissing
	}

	c := &claims.Claims{}
	parsed, err := jwt.ParseWithClaims(raw, c, a.keyFunc)
	if err != nil {
		return claims.Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid || c.ID == "" {
		return claims.Identity{}, ErrInvalid
	}

	role, err := claims.ParseRole(c.Role)
	if err != nil {
		return claims.Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return claims.Identity{UserID: c.ID, Role: role}, nil
}

func (a *Authenticator) Issue(id claims.Identity) (string, error) {
	if id.UserID == "" {
		return "", errors.New("token: empty user id")
	}
	if _, err := claims.ParseRole(string(id.Role)); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims.Claims{
		ID:   id.UserID,
		Role: id.Role.String(),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
	})
	return t.SignedString(a.secret)
}
