package enums

import "fmt"

// AccountRole is the tenant role that decides which plans apply.
type AccountRole string

const (
	AccountRoleArtist AccountRole = "artist"
	AccountRoleLabel  AccountRole = "label"
)

var validAccountRoles = []AccountRole{
	AccountRoleArtist,
	AccountRoleLabel,
}

// String implements fmt.Stringer.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the role is known.
func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}
