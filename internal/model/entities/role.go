package entities

// Role of a downstream socket client.
type Role string

const (
	RoleNone      Role = ""
	RoleDashboard Role = "dashboard"
	RoleRover     Role = "rover"
)

// Opposite returns the role a signaling message from r is relayed to.
func (r Role) Opposite() Role {
	switch r {
	case RoleDashboard:
		return RoleRover
	case RoleRover:
		return RoleDashboard
	default:
		return RoleNone
	}
}
