package task

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("task not found")
	ErrAssigneeNotFound = errors.New("assigned teacher not found")

	errNotCreatorUpdate = "you can only update tasks you created"
	errNotCreatorDelete = "you can only delete tasks you created"
	errNotAssignee      = "you can only update tasks assigned to you"
	errNotHOD           = "only the HOD can create tasks"

	commentTaskCreated = "Task created"
)

type (
	// Repository persists tasks and their status-update ledger.
	//
	// CreateTask and UpdateTask are atomic: the task write and the status
	// update write either both commit or neither does, so that the most
	// recently inserted StatusUpdate always mirrors Task.Status.
	// Concurrent UpdateTask calls on the same task are not ordered here;
	// last-write-wins at transaction-commit order.
	Repository interface {
		CreateTask(ctx context.Context, t Task, initial StatusUpdate) (Task, error)
		QueryAllTasks(ctx context.Context) ([]Task, error)
		QueryTasksAssignedTo(ctx context.Context, userID int) ([]Task, error)
		// GetTaskByID loads the task with its creator, assignee and
		// newest-first status history.
		GetTaskByID(ctx context.Context, id int) (Task, error)
		UpdateTask(ctx context.Context, t Task, su *StatusUpdate) (Task, error)
		// DeleteTask removes the task and all of its status updates.
		DeleteTask(ctx context.Context, id int) error
		CountTasksAssignedTo(ctx context.Context, userID int) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor user.User, nt NewTask) (Task, error)
		Query(ctx context.Context, actor user.User) ([]Task, error)
		Get(ctx context.Context, actor user.User, id int) (Task, error)
		UpdateFields(ctx context.Context, actor user.User, id int, ut UpdateTask) (Task, error)
		UpdateStatus(ctx context.Context, actor user.User, id int, sc StatusChange) (Task, error)
		Delete(ctx context.Context, actor user.User, id int) error
	}

	// UserGetter is the slice of the user repository the task engine needs to
	// resolve assignees. user.Repository satisfies it.
	UserGetter interface {
		GetUserByID(ctx context.Context, id int) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

// getAssignee resolves and vets a task assignee: it must exist and hold a
// role a task can be delegated to (TEACHER or HOD).
func (svc *Service) getAssignee(ctx context.Context, id int) (user.User, error) {
	assignee, err := svc.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrAssigneeNotFound
		}
		return user.User{}, errors.Wrap(err, "finding assignee")
	}
	if !assignee.Assignable() {
		return user.User{}, ErrAssigneeNotFound
	}
	return assignee, nil
}

// Create opens a new task in status PENDING and records the creation entry in
// the status ledger; both writes commit atomically.
func (svc *Service) Create(ctx context.Context, actor user.User, nt NewTask) (Task, error) {
	if !CanPerform(actor, ActionCreate, nil) {
		return Task{}, core.NewForbiddenError(errNotHOD)
	}

	assignee, err := svc.getAssignee(ctx, nt.AssignedToID)
	if err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	t := Task{
		Title:        nt.Title,
		Description:  nt.Description,
		Status:       StatusPending,
		DueDate:      nt.DueDate,
		CreatedByID:  actor.ID,
		AssignedToID: assignee.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	initial := StatusUpdate{
		UserID:    actor.ID,
		Status:    StatusPending,
		Comment:   commentTaskCreated,
		CreatedAt: now,
	}
	return svc.repo.CreateTask(ctx, t, initial)
}

// Query returns the task set visible to actor: everything for ADMIN and HOD,
// only assigned tasks for a TEACHER.
func (svc *Service) Query(ctx context.Context, actor user.User) ([]Task, error) {
	if actor.IsAdmin() || actor.IsHOD() {
		return svc.repo.QueryAllTasks(ctx)
	}
	return svc.repo.QueryTasksAssignedTo(ctx, actor.ID)
}

// Get returns the task with its relations and history. A TEACHER asking for
// a task not assigned to them gets ErrNotFound: existence is not disclosed.
func (svc *Service) Get(ctx context.Context, actor user.User, id int) (Task, error) {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !CanPerform(actor, ActionView, &t) {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// UpdateFields patches a task's attributes. Only the creating HOD may do so;
// any other HOD gets a Forbidden error, not NotFound. A change of assignee is
// recorded in the status ledger with the task's current status, in the same
// transaction as the task write.
func (svc *Service) UpdateFields(ctx context.Context, actor user.User, id int, ut UpdateTask) (Task, error) {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !CanPerform(actor, ActionUpdateFields, &t) {
		return Task{}, core.NewForbiddenError(errNotCreatorUpdate)
	}

	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.DueDate != nil {
		t.DueDate = ut.DueDate
	}

	var su *StatusUpdate
	now := time.Now().UTC()
	if ut.AssignedToID != nil && *ut.AssignedToID != t.AssignedToID {
		assignee, err := svc.getAssignee(ctx, *ut.AssignedToID)
		if err != nil {
			return Task{}, err
		}
		t.AssignedToID = assignee.ID
		su = &StatusUpdate{
			TaskID:    t.ID,
			UserID:    actor.ID,
			Status:    t.Status, // unchanged
			Comment:   fmt.Sprintf("Task reassigned to %s", assignee.Name),
			CreatedAt: now,
		}
	}
	t.UpdatedAt = now
	return svc.repo.UpdateTask(ctx, t, su)
}

// UpdateStatus transitions the task to sc.Status and appends the ledger
// entry atomically. Transitions are unrestricted among the three states;
// a COMPLETED task may be re-opened.
func (svc *Service) UpdateStatus(ctx context.Context, actor user.User, id int, sc StatusChange) (Task, error) {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !CanPerform(actor, ActionUpdateStatus, &t) {
		return Task{}, core.NewForbiddenError(errNotAssignee)
	}

	now := time.Now().UTC()
	t.Status = sc.Status
	t.UpdatedAt = now
	su := StatusUpdate{
		TaskID:    t.ID,
		UserID:    actor.ID,
		Status:    sc.Status,
		Comment:   sc.Comment,
		CreatedAt: now,
	}
	return svc.repo.UpdateTask(ctx, t, &su)
}

// Delete removes the task and cascades its status history. Creator only.
func (svc *Service) Delete(ctx context.Context, actor user.User, id int) error {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanPerform(actor, ActionDelete, &t) {
		return core.NewForbiddenError(errNotCreatorDelete)
	}
	return svc.repo.DeleteTask(ctx, t.ID)
}
