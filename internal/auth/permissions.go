package auth

// Permission codes checked by the HTTP surface. Domain codes such as
// create:patient are seeded for the clinical modules that consume this service.
const (
	PermCreateUser   = "create:user"
	PermReadUser     = "read:user"
	PermUpdateUser   = "update:user"
	PermDeleteUser   = "delete:user"
	PermReadAuditLog = "read:audit_log"
)

var permissionVerbs = []string{"create", "read", "update", "delete"}

var permissionResources = []string{"patient", "exam", "treatment", "notification", "user"}

// AllPermissionCodes lists every code the seeder installs.
func AllPermissionCodes() []string {
	codes := make([]string, 0, len(permissionVerbs)*len(permissionResources)+1)
	for _, resource := range permissionResources {
		for _, verb := range permissionVerbs {
			codes = append(codes, verb+":"+resource)
		}
	}
	return append(codes, PermReadAuditLog)
}

// ReadOnlyPermissionCodes lists the read:* codes.
func ReadOnlyPermissionCodes() []string {
	codes := make([]string, 0, len(permissionResources))
	for _, resource := range permissionResources {
		codes = append(codes, "read:"+resource)
	}
	return codes
}
