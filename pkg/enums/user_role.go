package enums

import "fmt"

// UserRole scopes what a bearer token may do.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleOwner UserRole = "owner"
	UserRoleAdmin UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleUser,
	UserRoleOwner,
	UserRoleAdmin,
}

// IsValid reports whether the value is known.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
