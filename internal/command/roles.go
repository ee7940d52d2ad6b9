package command

// Role is a permission level the chat platform expresses as a role ID.
type Role string

const (
	RoleNone  Role = ""
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

// RoleMap resolves roles to the platform role IDs configured for this
// deployment.
type RoleMap struct {
	BuyerRoleID string
	AdminRoleID string
}

func (m RoleMap) id(r Role) string {
	switch r {
	case RoleBuyer:
		return m.BuyerRoleID
	case RoleAdmin:
		return m.AdminRoleID
	}
	return ""
}

// Allows reports whether a caller holding roleIDs satisfies r.
func (m RoleMap) Allows(r Role, roleIDs []string) bool {
	if r == RoleNone {
		return true
	}
	want := m.id(r)
	if want == "" {
		return false
	}
	for _, id := range roleIDs {
		if id == want {
			return true
		}
	}
	return false
}
