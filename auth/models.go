package auth

// RoleAdmin is the only privileged role in the system.
const RoleAdmin = "admin"

// Identity is the resolved principal behind a verified token or a successful
// credential check. The system has exactly one configured identity (the
// admin); there is no user table backing this type.
type Identity struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
