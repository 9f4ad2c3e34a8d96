package auth

import (
	"context"
	"slices"

	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/model"
)

type Identity struct {
	UserID string
	Role   model.Role
	Name   string
	Email  string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == model.RoleAdmin
}

// Owns reports whether the identity is the owner of a resource, or an admin.
func (i *Identity) Owns(ownerID string) bool {
	return i != nil && (i.Role == model.RoleAdmin || i.UserID == ownerID)
}

// IsAllowed checks role against the required set. An empty set allows any
// known role.
func IsAllowed(role model.Role, required ...model.Role) bool {
	if !role.Valid() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	return slices.Contains(required, role)
}

func Authorize(identity *Identity, allowed ...model.Role) error {
	if identity == nil {
		return apperrors.Unauthorized("authentication required")
	}
	if !IsAllowed(identity.Role, allowed...) {
		return apperrors.Forbidden("you are not allowed to perform this action")
	}
	return nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
