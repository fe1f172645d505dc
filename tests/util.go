package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/kazi/core/task"
	"github.com/trezcool/kazi/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTask(
	t *testing.T,
	repo task.Repository,
	title string,
	createdBy, assignedTo user.User,
	createdAt ...time.Time,
) task.Task {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tsk := task.Task{
		Title:        title,
		Status:       task.StatusPending,
		CreatedByID:  createdBy.ID,
		AssignedToID: assignedTo.ID,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	initial := task.StatusUpdate{
		UserID:    createdBy.ID,
		Status:    task.StatusPending,
		Comment:   "Task created",
		CreatedAt: tstamp,
	}
	tsk, err := repo.CreateTask(context.Background(), tsk, initial)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tsk
}
