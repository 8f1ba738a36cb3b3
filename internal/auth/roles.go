package auth

import "github.com/opsdeck/platform/internal/domain"

// HasRole reports whether the identity satisfies the required role. Checks
// are exact-match; requiring admin never accepts a lesser role.
func HasRole(identity domain.Identity, required string) bool {
	if required == "" {
		return true
	}
	if required == domain.RoleAdmin {
		return identity.Role == domain.RoleAdmin
	}
	return identity.Role == required
}
