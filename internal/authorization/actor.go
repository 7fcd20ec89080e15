package authorization

import "strings"

const (
	RoleSeller           = "seller"
	RolePlatformOperator = "platform_operator"
	RoleSystem           = "system"
)

// Actor is the caller identity supplied by the upstream gateway.
type Actor struct {
	ID   string
	Role string
}

func NewActor(id, role string) Actor {
	return Actor{
		ID:   strings.TrimSpace(id),
		Role: strings.ToLower(strings.TrimSpace(role)),
	}
}

// SystemActor is used by the scheduler when it acts on records.
func SystemActor() Actor {
	return Actor{ID: "scheduler", Role: RoleSystem}
}

func (a Actor) IsZero() bool {
	return strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Role) == ""
}

func (a Actor) subject() string {
	return a.Role + ":" + a.ID
}

func roleName(role string) string {
	return "role:" + role
}
