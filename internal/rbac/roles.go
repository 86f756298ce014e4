package rbac

// Role names as issued by the backend at signup. Keep these stable.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleSales = "sales"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// ValidRole reports whether role can be requested at signup.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleSales:
		return true
	default:
		return false
	}
}
