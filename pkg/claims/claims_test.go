package claims_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"workshop/pkg/claims"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in       string
		want     claims.Role
		elevated bool
		wantErr  bool
	}{
		{in: "worker", want: claims.RoleWorker},
		{in: "manager", want: claims.RoleManager, elevated: true},
		{in: "admin", want: claims.RoleAdmin, elevated: true},
		{in: "Manager", wantErr: true},
		{in: "", wantErr: true},
		{in: "managers", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			role, err := claims.ParseRole(test.in)
			if test.wantErr {
				assert.ErrorIs(t, err, claims.ErrUnknownRole)
				assert.False(t, role.Elevated())
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.want, role)
			assert.Equal(t, test.elevated, role.Elevated())
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := claims.FromContext(context.Background())
	assert.False(t, ok)

	ctx := claims.WithIdentity(context.Background(), claims.Identity{UserID: "u1", Role: claims.RoleManager})
	id, ok := claims.FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, claims.RoleManager, id.Role)
}
