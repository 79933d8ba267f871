package rbac

// Role names. They are stored in users.role and carried in access tokens.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Known reports whether role is one this service grants anything to.
func Known(role string) bool { return role == RoleAdmin || role == RoleViewer }
