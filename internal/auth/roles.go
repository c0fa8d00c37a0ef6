package auth

// Role scopes what a service token may do against the management API.
type Role string

const (
	// RoleAdmin may manage nodes, credentials and tokens.
	RoleAdmin Role = "admin"

	// RoleProber may trigger health probes but not mutate registrations.
	RoleProber Role = "prober"

	// RoleViewer has read-only access to management listings.
	RoleViewer Role = "viewer"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProber, RoleViewer:
		return true
	default:
		return false
	}
}

// Covers reports whether a token holding role r satisfies the required
// role. Admin covers everything; prober additionally covers viewer
// since probe surfaces expose the same listings.
func (r Role) Covers(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	if r == RoleProber && required == RoleViewer {
		return true
	}
	return r == required
}
