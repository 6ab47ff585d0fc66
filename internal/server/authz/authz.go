// Package authz decides whether a caller may perform an operation.
//
// Decisions are pure: they depend only on the caller and on data already
// loaded by the service layer. Denials are reported with the sentinels
// common.ErrUnauthenticated and common.ErrForbidden so the boundary can log
// them as distinct kinds.
package authz

import (
	"crypto/subtle"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
)

// Caller is the identity asserted by a request. The zero value is anonymous.
type Caller struct {
	ID   string
	Role models.Role
}

// Anonymous is the caller of a request without a valid token.
var Anonymous = Caller{}

// CallerOf returns the caller for an authenticated user.
func CallerOf(u *models.User) Caller {
	if u == nil {
		return Anonymous
	}
	return Caller{ID: u.ID, Role: u.Role}
}

// IsAnonymous reports whether no identity was asserted.
func (c Caller) IsAnonymous() bool { return c.ID == "" }

// HasRole reports whether the caller is authenticated and holds one of roles.
func (c Caller) HasRole(roles ...models.Role) bool {
	return !c.IsAnonymous() && slices.Contains(roles, c.Role)
}

// Requirement describes what an operation demands from its caller.
type Requirement struct {
	// Authenticated rejects anonymous callers.
	Authenticated bool
	// Roles, when non-empty, must contain the caller's role unless the
	// caller owns the resource.
	Roles []models.Role
	// OwnerID is the owner of the target resource, if any.
	OwnerID string
	// Bypass lists roles exempt from the ownership check.
	Bypass []models.Role
}

// Authorize evaluates req for caller. It returns nil when the operation is
// allowed.
func Authorize(caller Caller, req Requirement) error {
	if req.Authenticated && caller.IsAnonymous() {
		return common.ErrUnauthenticated
	}

	isOwner := req.OwnerID != "" && !caller.IsAnonymous() && caller.ID == req.OwnerID

	if len(req.Roles) > 0 && !caller.HasRole(req.Roles...) && !isOwner {
		return fmt.Errorf("%w: role %q not allowed", common.ErrForbidden, caller.Role)
	}

	if req.OwnerID != "" && !caller.IsAnonymous() && !caller.HasRole(req.Bypass...) && !isOwner {
		return fmt.Errorf("%w: not the owner", common.ErrForbidden)
	}

	return nil
}

// CheckMasterKey guards operations reserved to holders of the master key.
// It is a separate trust tier and is not satisfied by any user role.
func CheckMasterKey(provided, expected string) error {
	if provided == "" || expected == "" {
		return common.ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return common.ErrUnauthenticated
	}
	return nil
}

// ResolveTarget substitutes the caller's own id for the "me" alias. Other ids
// are returned unchanged. "me" from an anonymous caller is unauthenticated.
func ResolveTarget(caller Caller, id string) (string, error) {
	if id != common.MeAlias {
		return id, nil
	}
	if caller.IsAnonymous() {
		return "", common.ErrUnauthenticated
	}
	return caller.ID, nil
}
