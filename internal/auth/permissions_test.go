package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/jilaboon/rafit-sub000/internal/apperror"

	"github.com/stretchr/testify/assert"
)

func TestPermissionsFor(t *testing.T) {
	member := PermissionsFor(RoleMember)
	assert.True(t, member[own(PermBookingCancel)])
	assert.False(t, member[anyOf(PermBookingCancel)])
	assert.False(t, member[PermBookingCheck])

	admin := PermissionsFor(RoleAdmin)
	assert.True(t, admin[PermClassManage])
	assert.True(t, admin[PermPolicyManage])

	assert.Empty(t, PermissionsFor(Role("guest")))
}

func TestPrincipalAllowed(t *testing.T) {
	member := Principal{UserID: 10, Role: RoleMember}
	staff := Principal{UserID: 20, Role: RoleStaff}

	tests := []struct {
		name    string
		p       Principal
		perm    Permission
		ownerID int
		want    bool
	}{
		{"member cancels own booking", member, PermBookingCancel, 10, true},
		{"member cancels someone else's booking", member, PermBookingCancel, 11, false},
		{"member without owner", member, PermBookingCancel, 0, false},
		{"member cannot check in", member, PermBookingCheck, 10, false},
		{"staff cancels any booking", staff, PermBookingCancel, 11, true},
		{"staff checks in", staff, PermBookingCheck, 0, true},
		{"staff cannot cancel classes", staff, PermClassManage, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Allowed(tt.perm, tt.ownerID))
		})
	}
}

func TestRoleAuthorizer(t *testing.T) {
	authz := NewRoleAuthorizer()
	ctx := context.Background()

	assert.NoError(t, authz.Authorize(ctx, Principal{UserID: 1, Role: RoleAdmin}, PermClassManage, 0))

	err := authz.Authorize(ctx, Principal{UserID: 1, Role: RoleMember}, PermClassManage, 0)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}
