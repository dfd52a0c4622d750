package auth

import (
	"context"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
)

type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Permission names an action. A ":own" suffix restricts it to resources the
// caller owns; ":any" lifts that restriction.
type Permission string

const (
	PermBookingCreate Permission = "booking:create"
	PermBookingCancel Permission = "booking:cancel"
	PermBookingRead   Permission = "booking:read"
	PermBookingCheck  Permission = "booking:attendance"
	PermClassManage   Permission = "class:manage"
	PermPolicyManage  Permission = "tenant:policy"
)

func own(p Permission) Permission { return p + ":own" }
func anyOf(p Permission) Permission { return p + ":any" }

var rolePermissions = map[Role][]Permission{
	RoleMember: {
		own(PermBookingCreate),
		own(PermBookingCancel),
		own(PermBookingRead),
	},
	RoleStaff: {
		anyOf(PermBookingCreate),
		anyOf(PermBookingCancel),
		anyOf(PermBookingRead),
		PermBookingCheck,
	},
	RoleAdmin: {
		anyOf(PermBookingCreate),
		anyOf(PermBookingCancel),
		anyOf(PermBookingRead),
		PermBookingCheck,
		PermClassManage,
		PermPolicyManage,
	},
}

// PermissionsFor is the role lookup. Unknown roles get nothing.
func PermissionsFor(role Role) map[Permission]bool {
	set := make(map[Permission]bool)
	for _, p := range rolePermissions[role] {
		set[p] = true
	}
	return set
}

// Principal is the authenticated caller.
type Principal struct {
	UserID   int
	TenantID int
	Role     Role
}

// Allowed reports whether the principal may perform perm on a resource owned by ownerID.
// Pass ownerID 0 for resources without an owner.
func (p Principal) Allowed(perm Permission, ownerID int) bool {
	perms := PermissionsFor(p.Role)
	if perms[perm] || perms[anyOf(perm)] {
		return true
	}
	return ownerID != 0 && ownerID == p.UserID && perms[own(perm)]
}

// RoleAuthorizer is the permission gate used before every booking operation.
type RoleAuthorizer struct{}

func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

func (RoleAuthorizer) Authorize(_ context.Context, p Principal, perm Permission, ownerID int) error {
	if p.Allowed(perm, ownerID) {
		return nil
	}
	return apperror.ErrForbidden.Withf("%s is not allowed to %s", p.Role, perm)
}
