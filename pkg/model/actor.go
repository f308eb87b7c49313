package model

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Actor identity headers, injected by the gateway. Shared so every handler
// reads the same names.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Actor identifies who is performing an operation. Identity and role are
// established upstream; the engine only consumes them for authorization.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
