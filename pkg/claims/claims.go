package claims

import (
	"context"
	"errors"

	jwt "github.com/dgrijalva/jwt-go"
)

type contextKey string

const (
	TokenContextKey contextKey = "token"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is the closed set of worker roles. Anything not listed here is rejected
// at parse time, so call sites never compare raw strings.
type Role string

const (
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleWorker, RoleManager, RoleAdmin:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// Elevated reports whether the role is manager-tier or above.
func (r Role) Elevated() bool {
	switch r {
	case RoleManager, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Identity is the verified subject of an access token.
type Identity struct {
	UserID string
	Role   Role
}

type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.StandardClaims
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, TokenContextKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(TokenContextKey).(Identity)
	return id, ok
}
