package shared

import "github.com/google/uuid"

// RoleAdmin is the role that unlocks order administration
const RoleAdmin = "admin"

// Principal is the authenticated caller as supplied by the identity provider.
// It is passed explicitly into every cart and order operation.
type Principal struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole reports whether the principal carries the given role
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal may administer orders
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// RequireAdmin returns ErrForbidden unless the principal is an admin
func (p Principal) RequireAdmin() error {
	if p.UserID == uuid.Nil {
		return ErrUnauthorized
	}
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
