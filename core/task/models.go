package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

// Task statuses
const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

var AllStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

type Status string

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Task struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       Status     `json:"status"`
	DueDate      *time.Time `json:"due_date"` // UTC
	CreatedByID  int        `json:"created_by_id"`
	AssignedToID int        `json:"assigned_to_id"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC

	// joined relations; User.PasswordHash is never serialized
	CreatedBy     *user.User     `json:"created_by,omitempty"`
	AssignedTo    *user.User     `json:"assigned_to,omitempty"`
	StatusUpdates []StatusUpdate `json:"status_updates,omitempty"` // newest first
}

// StatusUpdate is an immutable ledger entry recording one status transition
// or reassignment event. It is only ever created or cascade-deleted with its
// owning Task, never mutated.
type StatusUpdate struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	UserID    int       `json:"user_id"`
	Status    Status    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC

	User *user.User `json:"user,omitempty"`
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description"`
	DueDate      *time.Time `json:"due_date"`
	AssignedToID int        `json:"assigned_to_id" validate:"required"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing
// Task. Each field is optional; nil leaves the attribute untouched.
type UpdateTask struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	DueDate      *time.Time `json:"due_date"`
	AssignedToID *int       `json:"assigned_to_id"`
}

func (ut *UpdateTask) Validate() error {
	if ut.Title != nil {
		*ut.Title = core.CleanString(*ut.Title)
		if *ut.Title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field cannot be blank"})
		}
	}
	if ut.Description != nil {
		*ut.Description = core.CleanString(*ut.Description)
	}
	if ut.AssignedToID != nil && *ut.AssignedToID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "assigned_to_id", Error: "invalid assignee"})
	}
	return nil
}

// StatusChange contains information needed to transition a Task's status.
type StatusChange struct {
	Status  Status `json:"status"`
	Comment string `json:"comment"`
}

func (sc *StatusChange) Validate() error {
	sc.Comment = core.CleanString(sc.Comment)
	if !sc.Status.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "a valid status is required"})
	}
	return nil
}
