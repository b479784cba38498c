package causality

import "strings"

// Role is a causality channel role, used both for what a caller asks for
// and for what is actually granted.
type Role string

const (
	RoleObserver    Role = "OBSERVER"
	RoleParticipant Role = "PARTICIPANT"
	RoleOperator    Role = "OPERATOR"
)

// wireRoles maps internal role names to the vocabulary the real-time
// service expects in the "role" claim.
var wireRoles = map[Role]string{
	RoleObserver:    "observer",
	RoleParticipant: "bidder",
	RoleOperator:    "operator",
}

var roleHierarchy = map[Role]int{
	RoleObserver:    0,
	RoleParticipant: 1,
	RoleOperator:    2,
}

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// WireName returns the external name used in issued tokens, or an empty
// string for unknown roles.
func (r Role) WireName() string {
	return wireRoles[r]
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// IsAtMost checks if this role does not exceed the given role
func (r Role) IsAtMost(maxRole Role) bool {
	if !r.IsValid() || !maxRole.IsValid() {
		return false
	}
	return maxRole.IsAtLeast(r)
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleObserver,
		RoleParticipant,
		RoleOperator,
	}
}

// ParseRole parses an enum name such as "participant" or "PARTICIPANT".
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// RoleFromWire maps a token "role" claim back to the internal role.
func RoleFromWire(name string) (Role, bool) {
	for role, wire := range wireRoles {
		if wire == name {
			return role, true
		}
	}
	return "", false
}
