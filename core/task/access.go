package task

import "github.com/trezcool/kazi/core/user"

// Actions a user may attempt on the task domain.
const (
	ActionCreate         Action = "CREATE_TASK"
	ActionView           Action = "VIEW_TASK"
	ActionList           Action = "LIST_TASKS"
	ActionUpdateFields   Action = "UPDATE_TASK_FIELDS"
	ActionUpdateStatus   Action = "UPDATE_TASK_STATUS"
	ActionDelete         Action = "DELETE_TASK"
	ActionManageTeachers Action = "MANAGE_TEACHERS"
)

type Action string

// CanPerform decides whether actor may perform action on t.
// It is a pure decision function: rules are evaluated in order and the first
// match wins; all effects happen elsewhere after the gate passes.
// t may be nil for actions that do not target an existing task.
func CanPerform(actor user.User, action Action, t *Task) bool {
	switch action {
	case ActionManageTeachers:
		return actor.IsAdmin()

	case ActionCreate:
		return actor.IsHOD()

	case ActionUpdateFields, ActionDelete:
		// HOD only, and only on tasks they created
		return actor.IsHOD() && t != nil && t.CreatedByID == actor.ID

	case ActionUpdateStatus:
		// any HOD, or the assignee
		if actor.IsHOD() {
			return true
		}
		return t != nil && t.AssignedToID == actor.ID

	case ActionView:
		// teachers only see tasks assigned to them
		if actor.IsAdmin() || actor.IsHOD() {
			return true
		}
		return t != nil && t.AssignedToID == actor.ID

	case ActionList:
		// everyone may list; the result set is scoped per role by the query
		return true
	}
	return false
}
