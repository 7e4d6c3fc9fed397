package batch

import (
	"testing"

	"github.com/trezcool/darasa/core/user"
)

func TestCanActOn(t *testing.T) {
	admin := user.User{ID: "a1", Roles: []string{user.RoleAdmin}}
	owner := user.User{ID: "t1", Roles: []string{user.RoleTeacher}}
	otherTeacher := user.User{ID: "t2", Roles: []string{user.RoleTeacher}}
	enrolled := user.User{ID: "s1", Roles: []string{user.RoleStudent}}
	outsider := user.User{ID: "s2", Roles: []string{user.RoleStudent}}

	b := Batch{
		ID:        "b1",
		TeacherID: owner.ID,
		Students:  []string{enrolled.ID},
	}

	tests := []struct {
		name   string
		usr    user.User
		action Action
		want   bool
	}{
		{name: "admin can view", usr: admin, action: ActionView, want: true},
		{name: "admin can manage", usr: admin, action: ActionManage, want: true},
		{name: "owning teacher can view", usr: owner, action: ActionView, want: true},
		{name: "owning teacher can manage", usr: owner, action: ActionManage, want: true},
		{name: "owning teacher can record", usr: owner, action: ActionRecord, want: true},
		{name: "other teacher cannot view", usr: otherTeacher, action: ActionView, want: false},
		{name: "other teacher cannot manage", usr: otherTeacher, action: ActionManage, want: false},
		{name: "enrolled student can view", usr: enrolled, action: ActionView, want: true},
		{name: "enrolled student cannot manage", usr: enrolled, action: ActionManage, want: false},
		{name: "enrolled student cannot record", usr: enrolled, action: ActionRecord, want: false},
		{name: "outsider student cannot view", usr: outsider, action: ActionView, want: false},
		{name: "outsider student cannot manage", usr: outsider, action: ActionManage, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanActOn(tt.usr, b, tt.action); got != tt.want {
				t.Errorf("CanActOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsEnrolled(t *testing.T) {
	b := Batch{Students: []string{"s1", "s2"}}

	if !b.IsEnrolled("s1") {
		t.Error("IsEnrolled(s1) = false, want true")
	}
	if b.IsEnrolled("s3") {
		t.Error("IsEnrolled(s3) = true, want false")
	}
}
