package user

// Roles
const (
	RoleAdmin           = "admin"
	RoleSubAdmin        = "sub-admin"
	RoleManager         = "manager"
	RoleStaff           = "staff"
	RoleCustomerSupport = "customer-support"
)

// Permissions gate both pages and API routes.
const (
	PermDashboard      = "dashboard"
	PermLeads          = "leads"
	PermAddLeads       = "add-leads"
	PermPipeline       = "pipeline"
	PermFollowup       = "followup"
	PermSearch         = "search"
	PermSettings       = "settings"
	PermUserManagement = "user-management"
)

var (
	AllRoles = []string{RoleAdmin, RoleSubAdmin, RoleManager, RoleStaff, RoleCustomerSupport}

	rolePriorities = map[string]int{
		RoleAdmin:           50,
		RoleSubAdmin:        40,
		RoleManager:         30,
		RoleStaff:           20,
		RoleCustomerSupport: 10,
	}

	allPermissions = []string{
		PermDashboard, PermLeads, PermAddLeads, PermPipeline, PermFollowup, PermSearch, PermSettings, PermUserManagement,
	}

	rolePermissions = map[string][]string{
		RoleAdmin:           allPermissions,
		RoleSubAdmin:        allPermissions,
		RoleManager:         {PermDashboard, PermLeads, PermAddLeads, PermPipeline, PermFollowup, PermSearch},
		RoleStaff:           {PermLeads, PermAddLeads, PermPipeline, PermFollowup, PermSearch},
		RoleCustomerSupport: {PermPipeline, PermFollowup, PermSearch},
	}

	Roles = []Role{
		{Name: "Admin", Value: RoleAdmin, Permissions: rolePermissions[RoleAdmin]},
		{Name: "Sub Admin", Value: RoleSubAdmin, Permissions: rolePermissions[RoleSubAdmin]},
		{Name: "Manager", Value: RoleManager, Permissions: rolePermissions[RoleManager]},
		{Name: "Staff", Value: RoleStaff, Permissions: rolePermissions[RoleStaff]},
		{Name: "Customer Support", Value: RoleCustomerSupport, Permissions: rolePermissions[RoleCustomerSupport]},
	}
)

type Role struct {
	Name        string   `json:"name"`
	Value       string   `json:"value"`
	Permissions []string `json:"permissions"`
}

func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

// RolePermissions returns the permissions granted to role (nil for unknown roles).
func RolePermissions(role string) []string {
	return rolePermissions[role]
}

// HasPermission reports whether role is granted any of perms.
func HasPermission(role string, perms ...string) bool {
	for _, granted := range rolePermissions[role] {
		for _, p := range perms {
			if granted == p {
				return true
			}
		}
	}
	return false
}
