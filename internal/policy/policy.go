// Package policy decides whether a principal may act on an account or on a record owned by one.
//
// An action is allowed when the principal holds the "<app>.<action>_<resource>" permission, or when
// the principal is the account that owns the record.
package policy

import (
	"errors"

	"github.com/suteetoe/geoprofile/internal/model"
)

// ErrForbidden is returned by Authorize when the rule denies the action
var ErrForbidden = errors.New("forbidden")

// Action is one of the four permission verbs
type Action string

const (
	ActionAdd    Action = "add"
	ActionView   Action = "view"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

// PermissionName builds the dotted permission name for an action on a resource
func PermissionName(action Action, resource string) string {
	return model.AppLabel + "." + string(action) + "_" + resource
}

// Principal is the authenticated caller with its effective permissions
type Principal struct {
	UserID      uint
	Email       string
	IsActive    bool
	IsStaff     bool
	IsAdmin     bool
	IsSuperuser bool
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal from an account and the union of its direct and group permissions
func NewPrincipal(u *model.User, permissions []string) *Principal {
	p := &Principal{
		UserID:      u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsAdmin:     u.IsAdmin,
		IsSuperuser: u.IsSuperuser,
		Permissions: make(map[string]struct{}, len(permissions)),
	}
	for _, perm := range permissions {
		p.Permissions[perm] = struct{}{}
	}
	return p
}

// HasPerm reports whether the principal holds perm. Inactive principals hold nothing and
// active superusers hold everything.
func (p *Principal) HasPerm(perm string) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if p.IsSuperuser {
		return true
	}
	_, ok := p.Permissions[perm]
	return ok
}

// IsPrivileged reports whether the principal gets the admin field set
func (p *Principal) IsPrivileged() bool {
	return p != nil && (p.IsAdmin || p.IsSuperuser)
}

// Rule is the permission-or-ownership check for one resource type
type Rule[T any] struct {
	Resource string
	Owner    func(T) uint
}

// Allows reports whether p may perform action on obj
func (r Rule[T]) Allows(p *Principal, action Action, obj T) bool {
	if p == nil {
		return false
	}
	if p.HasPerm(PermissionName(action, r.Resource)) {
		return true
	}
	return r.Owner != nil && r.owns(p, r.Owner(obj))
}

// AllowsOwner checks the rule against an owner id when no record exists yet
// (creates, and listings filtered by owner).
func (r Rule[T]) AllowsOwner(p *Principal, action Action, ownerID uint) bool {
	if p == nil {
		return false
	}
	if p.HasPerm(PermissionName(action, r.Resource)) {
		return true
	}
	return r.owns(p, ownerID)
}

// Authorize is Allows returning ErrForbidden on denial
func (r Rule[T]) Authorize(p *Principal, action Action, obj T) error {
	if !r.Allows(p, action, obj) {
		return ErrForbidden
	}
	return nil
}

// AuthorizeOwner is AllowsOwner returning ErrForbidden on denial
func (r Rule[T]) AuthorizeOwner(p *Principal, action Action, ownerID uint) error {
	if !r.AllowsOwner(p, action, ownerID) {
		return ErrForbidden
	}
	return nil
}

func (r Rule[T]) owns(p *Principal, ownerID uint) bool {
	return p.UserID != 0 && ownerID == p.UserID
}

// Rules for the four protected resource types
var (
	Users = Rule[*model.User]{
		Resource: model.ResourceUser,
		Owner:    func(u *model.User) uint { return u.ID },
	}
	Interests = Rule[*model.AreaOfInterest]{
		Resource: model.ResourceAreaOfInterest,
		Owner:    (*model.AreaOfInterest).OwnerID,
	}
	WorkDistances = Rule[*model.WorkDistance]{
		Resource: model.ResourceWorkDistance,
		Owner:    (*model.WorkDistance).OwnerID,
	}
	Documents = Rule[*model.Document]{
		Resource: model.ResourceDocument,
		Owner:    (*model.Document).OwnerID,
	}
)
