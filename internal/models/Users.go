package models

import (
	"slices"
	"strings"
)

var DefaultRoles = []string{"Player", "Coordinator"}

type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewIdentity(username, role string) Identity {
	return Identity{Username: strings.TrimSpace(username), Role: strings.TrimSpace(role)}
}

// Known reports whether the identity has a username and one of the
// recognised roles. A nil roles slice means DefaultRoles.
func (i Identity) Known(roles []string) bool {
	if roles == nil {
		roles = DefaultRoles
	}
	return strings.TrimSpace(i.Username) != "" && slices.Contains(roles, i.Role)
}
