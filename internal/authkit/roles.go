package authkit

// Role is the fixed enumeration of principal roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// DefaultRole is assigned to every new signup.
const DefaultRole = RoleUser

// ParseRole maps a claim value onto a known role.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleUser, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}
