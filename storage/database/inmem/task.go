package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core/task"
	"github.com/trezcool/kazi/core/user"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)         // interface compliance check
var _ user.AssignmentChecker = (*taskRepository)(nil)

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

// join attaches creator, assignee and newest-first history to t.
// Callers must hold at least a read lock on the task table.
func (repo *taskRepository) join(t task.Task) task.Task {
	repo.db.user.RLock()
	if usr, ok := repo.db.user.table[t.CreatedByID]; ok {
		u := *usr
		t.CreatedBy = &u
	}
	if usr, ok := repo.db.user.table[t.AssignedToID]; ok {
		u := *usr
		t.AssignedTo = &u
	}
	repo.db.user.RUnlock()

	entries := repo.db.task.ledger[t.ID]
	history := make([]task.StatusUpdate, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- { // newest first
		su := entries[i]
		repo.db.user.RLock()
		if usr, ok := repo.db.user.table[su.UserID]; ok {
			u := *usr
			su.User = &u
		}
		repo.db.user.RUnlock()
		history = append(history, su)
	}
	t.StatusUpdates = history
	return t
}

func (repo *taskRepository) query(filter func(task.Task) bool) []task.Task {
	tasks := make([]task.Task, 0, len(repo.db.task.table))
	for _, t := range repo.db.task.table {
		if filter == nil || filter(*t) {
			tasks = append(tasks, repo.join(*t))
		}
	}
	// newest first, ID breaks ties in insertion order
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

func (repo *taskRepository) appendEntry(su task.StatusUpdate) {
	repo.db.task.suPkCount++
	su.ID = repo.db.task.suPkCount
	repo.db.task.ledger[su.TaskID] = append(repo.db.task.ledger[su.TaskID], su)
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task, initial task.StatusUpdate) (task.Task, error) {
	repo.db.task.Lock()
	defer repo.db.task.Unlock()

	repo.db.task.pkCount++
	t.ID = repo.db.task.pkCount
	stored := t
	stored.CreatedBy, stored.AssignedTo, stored.StatusUpdates = nil, nil, nil
	repo.db.task.table[t.ID] = &stored

	initial.TaskID = t.ID
	repo.appendEntry(initial)

	return repo.join(stored), nil
}

func (repo *taskRepository) QueryAllTasks(_ context.Context) ([]task.Task, error) {
	repo.db.task.RLock()
	defer repo.db.task.RUnlock()
	return repo.query(nil), nil
}

func (repo *taskRepository) QueryTasksAssignedTo(_ context.Context, userID int) ([]task.Task, error) {
	repo.db.task.RLock()
	defer repo.db.task.RUnlock()
	return repo.query(func(t task.Task) bool { return t.AssignedToID == userID }), nil
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id int) (task.Task, error) {
	repo.db.task.RLock()
	defer repo.db.task.RUnlock()

	if t, ok := repo.db.task.table[id]; ok {
		return repo.join(*t), nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task, su *task.StatusUpdate) (task.Task, error) {
	repo.db.task.Lock()
	defer repo.db.task.Unlock()

	orig, ok := repo.db.task.table[t.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	orig.Title = t.Title
	orig.Description = t.Description
	orig.Status = t.Status
	orig.DueDate = t.DueDate
	orig.AssignedToID = t.AssignedToID
	orig.UpdatedAt = t.UpdatedAt

	if su != nil {
		entry := *su
		entry.TaskID = t.ID
		repo.appendEntry(entry)
	}
	return repo.join(*orig), nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id int) error {
	repo.db.task.Lock()
	defer repo.db.task.Unlock()

	if _, ok := repo.db.task.table[id]; !ok {
		return task.ErrNotFound
	}
	delete(repo.db.task.ledger, id) // cascade
	delete(repo.db.task.table, id)
	return nil
}

func (repo *taskRepository) CountTasksAssignedTo(_ context.Context, userID int) (int, error) {
	repo.db.task.RLock()
	defer repo.db.task.RUnlock()

	var cnt int
	for _, t := range repo.db.task.table {
		if t.AssignedToID == userID {
			cnt++
		}
	}
	return cnt, nil
}
