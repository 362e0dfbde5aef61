package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	cases := []struct {
		name       string
		role       UserRole
		op         Operation
		isOwner    bool
		isAssignee bool
		allow      bool
	}{
		{name: "user creates issue", role: RoleUser, op: OpCreateIssue, allow: true},
		{name: "admin creates issue", role: RoleAdmin, op: OpCreateIssue, allow: false},
		{name: "worker creates issue", role: RoleWorker, op: OpCreateIssue, allow: false},

		{name: "admin updates issue", role: RoleAdmin, op: OpAdminUpdate, allow: true},
		{name: "user updates issue", role: RoleUser, op: OpAdminUpdate, allow: false},
		{name: "worker admin update", role: RoleWorker, op: OpAdminUpdate, isAssignee: true, allow: false},

		{name: "assigned worker", role: RoleWorker, op: OpWorkerUpdate, isAssignee: true, allow: true},
		{name: "unassigned worker", role: RoleWorker, op: OpWorkerUpdate, allow: false},
		{name: "admin as worker", role: RoleAdmin, op: OpWorkerUpdate, isAssignee: true, allow: false},

		{name: "admin dashboard", role: RoleAdmin, op: OpViewDashboard, allow: true},
		{name: "worker dashboard", role: RoleWorker, op: OpViewDashboard, allow: false},
		{name: "admin lists users", role: RoleAdmin, op: OpListUsers, allow: true},
		{name: "user lists users", role: RoleUser, op: OpListUsers, allow: false},

		{name: "owner reads notification", role: RoleUser, op: OpModifyNotification, isOwner: true, allow: true},
		{name: "admin reads foreign notification", role: RoleAdmin, op: OpModifyNotification, allow: false},

		{name: "unknown role", role: UserRole("GUEST"), op: OpModifyNotification, isOwner: true, allow: false},
		{name: "unknown operation", role: RoleAdmin, op: Operation("delete_city"), allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Allow(tc.role, tc.op, tc.isOwner, tc.isAssignee)
			assert.Equal(t, tc.allow, got, "Allow(%q, %q, %v, %v)", tc.role, tc.op, tc.isOwner, tc.isAssignee)
		})
	}
}

func TestFromString(t *testing.T) {
	for _, role := range AllRoles() {
		got, ok := FromString(string(role))
		assert.True(t, ok)
		assert.Equal(t, role, got)
	}

	_, ok := FromString("admin")
	assert.False(t, ok)
	_, ok = FromString("")
	assert.False(t, ok)
}

func TestIssueStatus_CanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to IssueStatus
		want     bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusResolved, true},
		{StatusInProgress, StatusResolved, true},
		{StatusInProgress, StatusPending, false},
		{StatusResolved, StatusInProgress, false},
		{StatusResolved, StatusResolved, true},
		{StatusPending, IssueStatus("CLOSED"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanAdvanceTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
