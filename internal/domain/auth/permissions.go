package auth

const (
	RoleEmployee = "Employee"
	RoleManager  = "Manager"
	RoleHR       = "HR"
	RoleAdmin    = "Admin"
)

const (
	PermEmployeesRead       = "employees.read"
	PermEmployeesWrite      = "employees.write"
	PermOrgRead             = "org.read"
	PermOrgWrite            = "org.write"
	PermContractsRead       = "contracts.read"
	PermContractsWrite      = "contracts.write"
	PermContractsApprove    = "contracts.approve"
	PermCertificationsRead  = "certifications.read"
	PermCertificationsWrite = "certifications.write"
	PermDocumentsRead       = "documents.read"
	PermDocumentsWrite      = "documents.write"
	PermTasksRead           = "tasks.read"
	PermTasksWrite          = "tasks.write"
	PermRolesManage         = "roles.manage"
	PermAuditRead           = "audit.read"
	PermJobsRun             = "jobs.run"
	PermAdminAPIKeys        = "admin.apikeys"
	PermAdminSettings       = "admin.settings"
)

// DefaultPermissions is the permission catalog seeded at startup, with descriptions.
var DefaultPermissions = []Permission{
	{Key: PermEmployeesRead, Description: "View employee records"},
	{Key: PermEmployeesWrite, Description: "Create, update and delete employees"},
	{Key: PermOrgRead, Description: "View departments and positions"},
	{Key: PermOrgWrite, Description: "Manage departments and positions"},
	{Key: PermContractsRead, Description: "View contracts and approval history"},
	{Key: PermContractsWrite, Description: "Draft, submit and cancel contracts"},
	{Key: PermContractsApprove, Description: "Approve or reject contract steps"},
	{Key: PermCertificationsRead, Description: "View certifications"},
	{Key: PermCertificationsWrite, Description: "Manage certifications and attachments"},
	{Key: PermDocumentsRead, Description: "View identity documents"},
	{Key: PermDocumentsWrite, Description: "Manage identity documents and files"},
	{Key: PermTasksRead, Description: "View tasks; without tasks.write only your own"},
	{Key: PermTasksWrite, Description: "Create and assign tasks"},
	{Key: PermRolesManage, Description: "Manage roles and their permissions"},
	{Key: PermAuditRead, Description: "View and export the audit trail"},
	{Key: PermJobsRun, Description: "Run scheduled jobs on demand"},
	{Key: PermAdminAPIKeys, Description: "Issue and revoke API keys"},
	{Key: PermAdminSettings, Description: "Change notification settings"},
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermOrgRead,
		PermCertificationsRead,
		PermDocumentsRead,
		PermTasksRead,
	},
	RoleManager: {
		PermEmployeesRead,
		PermOrgRead,
		PermContractsRead,
		PermContractsApprove,
		PermCertificationsRead,
		PermDocumentsRead,
		PermTasksRead,
		PermTasksWrite,
	},
	RoleHR: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermOrgRead,
		PermOrgWrite,
		PermContractsRead,
		PermContractsWrite,
		PermContractsApprove,
		PermCertificationsRead,
		PermCertificationsWrite,
		PermDocumentsRead,
		PermDocumentsWrite,
		PermTasksRead,
		PermTasksWrite,
		PermAuditRead,
	},
	RoleAdmin: PermissionKeys(),
}

var roleDescriptions = map[string]string{
	RoleEmployee: "Self-service access",
	RoleManager:  "Team lead; first contract approver",
	RoleHR:       "HR staff managing the workforce",
	RoleAdmin:    "Full administrative access",
}

// RoleDescription returns the seeded description of a built-in role.
func RoleDescription(role string) string {
	return roleDescriptions[role]
}

func PermissionKeys() []string {
	out := make([]string, 0, len(DefaultPermissions))
	for _, perm := range DefaultPermissions {
		out = append(out, perm.Key)
	}
	return out
}

func IsKnownPermission(key string) bool {
	for _, perm := range DefaultPermissions {
		if perm.Key == key {
			return true
		}
	}
	return false
}
