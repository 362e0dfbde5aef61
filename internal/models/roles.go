// internal/models/roles.go

package models

// UserRole is the closed set of roles an authenticated identity can carry.
type UserRole string

const (
	RoleUser   UserRole = "USER"
	RoleAdmin  UserRole = "ADMIN"
	RoleWorker UserRole = "WORKER"
)

// IsValid reports whether r is one of the known roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleWorker:
		return true
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}

// AllRoles returns every role in a stable order.
func AllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleAdmin,
		RoleWorker,
	}
}

// FromString converts a raw string into a UserRole.
func FromString(role string) (UserRole, bool) {
	r := UserRole(role)
	if r.IsValid() {
		return r, true
	}
	return "", false
}

// Operation names a capability checked by Allow.
type Operation string

const (
	OpCreateIssue        Operation = "create_issue"
	OpAdminUpdate        Operation = "admin_update"
	OpWorkerUpdate       Operation = "worker_update"
	OpViewDashboard      Operation = "view_dashboard"
	OpModifyNotification Operation = "modify_notification"
	OpListUsers          Operation = "list_users"
)

// Allow is the single place where role and ownership checks live.
// isOwner means the actor owns the resource (the recipient, for notifications);
// isAssignee means the actor is the issue's current assigned_to.
func Allow(role UserRole, op Operation, isOwner, isAssignee bool) bool {
	if !role.IsValid() {
		return false
	}

	switch op {
	case OpCreateIssue:
		return role == RoleUser
	case OpAdminUpdate, OpViewDashboard, OpListUsers:
		return role == RoleAdmin
	case OpWorkerUpdate:
		return role == RoleWorker && isAssignee
	case OpModifyNotification:
		return isOwner
	default:
		return false
	}
}
