package task

import (
	"testing"

	"github.com/trezcool/kazi/core/user"
)

func TestCanPerform(t *testing.T) {
	admin := user.User{ID: 1, Role: user.RoleAdmin}
	hod := user.User{ID: 2, Role: user.RoleHOD}
	otherHOD := user.User{ID: 3, Role: user.RoleHOD}
	teacher := user.User{ID: 4, Role: user.RoleTeacher}
	otherTeacher := user.User{ID: 5, Role: user.RoleTeacher}

	// created by hod, assigned to teacher
	tsk := &Task{ID: 1, CreatedByID: hod.ID, AssignedToID: teacher.ID}

	tests := []struct {
		name   string
		actor  user.User
		action Action
		task   *Task
		want   bool
	}{
		// teacher management
		{name: "admin manages teachers", actor: admin, action: ActionManageTeachers, want: true},
		{name: "hod cannot manage teachers", actor: hod, action: ActionManageTeachers, want: false},
		{name: "teacher cannot manage teachers", actor: teacher, action: ActionManageTeachers, want: false},

		// create
		{name: "hod creates", actor: hod, action: ActionCreate, want: true},
		{name: "admin cannot create", actor: admin, action: ActionCreate, want: false},
		{name: "teacher cannot create", actor: teacher, action: ActionCreate, want: false},

		// update fields / delete: creating HOD only
		{name: "creator updates fields", actor: hod, action: ActionUpdateFields, task: tsk, want: true},
		{name: "other hod cannot update fields", actor: otherHOD, action: ActionUpdateFields, task: tsk, want: false},
		{name: "assignee cannot update fields", actor: teacher, action: ActionUpdateFields, task: tsk, want: false},
		{name: "creator deletes", actor: hod, action: ActionDelete, task: tsk, want: true},
		{name: "other hod cannot delete", actor: otherHOD, action: ActionDelete, task: tsk, want: false},
		{name: "admin cannot delete", actor: admin, action: ActionDelete, task: tsk, want: false},

		// status
		{name: "assignee updates status", actor: teacher, action: ActionUpdateStatus, task: tsk, want: true},
		{name: "creator updates status", actor: hod, action: ActionUpdateStatus, task: tsk, want: true},
		{name: "any hod updates status", actor: otherHOD, action: ActionUpdateStatus, task: tsk, want: true},
		{name: "other teacher cannot update status", actor: otherTeacher, action: ActionUpdateStatus, task: tsk, want: false},
		{name: "admin cannot update status", actor: admin, action: ActionUpdateStatus, task: tsk, want: false},

		// view
		{name: "admin views any", actor: admin, action: ActionView, task: tsk, want: true},
		{name: "hod views any", actor: otherHOD, action: ActionView, task: tsk, want: true},
		{name: "assignee views", actor: teacher, action: ActionView, task: tsk, want: true},
		{name: "other teacher cannot view", actor: otherTeacher, action: ActionView, task: tsk, want: false},

		// list
		{name: "anyone lists", actor: otherTeacher, action: ActionList, want: true},

		// unknown action
		{name: "unknown action denied", actor: admin, action: Action("NUKE_DEPARTMENT"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPerform(tt.actor, tt.action, tt.task); got != tt.want {
				t.Errorf("CanPerform() = %v, want %v", got, tt.want)
			}
		})
	}
}
