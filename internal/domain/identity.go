package domain

// Identity is the verified subject produced by a token verifier. It lives for
// the duration of one request and is never cached or persisted.
type Identity struct {
	Subject string
	Role    string
	Email   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Role constants. Role checks are exact-match against a single required role.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)
