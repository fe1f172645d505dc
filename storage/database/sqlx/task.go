package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/task"
	"github.com/trezcool/kazi/core/user"
)

type taskRow struct {
	ID           int          `db:"id"`
	Title        string       `db:"title"`
	Description  string       `db:"description"`
	Status       string       `db:"status"`
	DueDate      sql.NullTime `db:"due_date"`
	CreatedByID  int          `db:"created_by_id"`
	AssignedToID int          `db:"assigned_to_id"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (r taskRow) task() task.Task {
	t := task.Task{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       task.Status(r.Status),
		CreatedByID:  r.CreatedByID,
		AssignedToID: r.AssignedToID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.DueDate.Valid {
		due := r.DueDate.Time
		t.DueDate = &due
	}
	return t
}

type statusUpdateRow struct {
	ID        int            `db:"id"`
	TaskID    int            `db:"task_id"`
	UserID    int            `db:"user_id"`
	Status    string         `db:"status"`
	Comment   sql.NullString `db:"comment"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r statusUpdateRow) statusUpdate() task.StatusUpdate {
	return task.StatusUpdate{
		ID:        r.ID,
		TaskID:    r.TaskID,
		UserID:    r.UserID,
		Status:    task.Status(r.Status),
		Comment:   r.Comment.String,
		CreatedAt: r.CreatedAt,
	}
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil)        // interface compliance check
var _ user.AssignmentChecker = (*taskRepository)(nil)

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

func nullDue(t task.Task) sql.NullTime {
	if t.DueDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t.DueDate, Valid: true}
}

func nullComment(su task.StatusUpdate) sql.NullString {
	if su.Comment == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: su.Comment, Valid: true}
}

// join attaches creator, assignee and newest-first status history to t.
func (repo taskRepository) join(ctx context.Context, q sqlx.QueryerContext, t task.Task) (task.Task, error) {
	var users []userRow
	query, args, err := sqlx.In(`SELECT * FROM "user" WHERE id IN (?)`, []int{t.CreatedByID, t.AssignedToID})
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building relations query")
	}
	if err = sqlx.SelectContext(ctx, q, &users, repo.db.Rebind(query), args...); err != nil {
		return task.Task{}, errors.Wrap(err, "querying task relations")
	}
	for _, r := range users {
		usr := r.user()
		if usr.ID == t.CreatedByID {
			u := usr
			t.CreatedBy = &u
		}
		if usr.ID == t.AssignedToID {
			u := usr
			t.AssignedTo = &u
		}
	}

	var entries []statusUpdateRow
	err = sqlx.SelectContext(ctx, q, &entries, `
		SELECT * FROM task_status_update
		WHERE task_id = $1
		ORDER BY created_at DESC, id DESC`, t.ID)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "querying status history")
	}
	history := make([]task.StatusUpdate, 0, len(entries))
	for _, r := range entries {
		su := r.statusUpdate()
		if t.CreatedBy != nil && su.UserID == t.CreatedBy.ID {
			su.User = t.CreatedBy
		} else if t.AssignedTo != nil && su.UserID == t.AssignedTo.ID {
			su.User = t.AssignedTo
		} else {
			var row userRow
			if err = sqlx.GetContext(ctx, q, &row, `SELECT * FROM "user" WHERE id = $1`, su.UserID); err == nil {
				usr := row.user()
				su.User = &usr
			}
		}
		history = append(history, su)
	}
	t.StatusUpdates = history
	return t, nil
}

func insertStatusUpdate(ctx context.Context, tx *sqlx.Tx, su task.StatusUpdate) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_status_update (task_id, user_id, status, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		su.TaskID, su.UserID, string(su.Status), nullComment(su), su.CreatedAt,
	)
	return errors.Wrap(err, "inserting status update")
}

// CreateTask persists the task and its initial ledger entry in one
// transaction; neither write is observable unless both commit.
func (repo taskRepository) CreateTask(ctx context.Context, t task.Task, initial task.StatusUpdate) (task.Task, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO task (title, description, status, due_date, created_by_id, assigned_to_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		t.Title, t.Description, string(t.Status), nullDue(t), t.CreatedByID, t.AssignedToID, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}

	initial.TaskID = t.ID
	if err = insertStatusUpdate(ctx, tx, initial); err != nil {
		return task.Task{}, err
	}

	t, err = repo.join(ctx, tx, t)
	if err != nil {
		return task.Task{}, err
	}

	if err = tx.Commit(); err != nil {
		return task.Task{}, errors.Wrap(err, "committing task")
	}
	return t, nil
}

func (repo taskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]task.Task, error) {
	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		t, err := repo.join(ctx, repo.db, r.task())
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (repo taskRepository) QueryAllTasks(ctx context.Context) ([]task.Task, error) {
	return repo.queryTasks(ctx, `SELECT * FROM task ORDER BY created_at DESC, id DESC`)
}

func (repo taskRepository) QueryTasksAssignedTo(ctx context.Context, userID int) ([]task.Task, error) {
	return repo.queryTasks(ctx, `SELECT * FROM task WHERE assigned_to_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id int) (task.Task, error) {
	var row taskRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM task WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "finding task by ID")
	}
	return repo.join(ctx, repo.db, row.task())
}

// UpdateTask writes the task row and, when su is non-nil, appends the ledger
// entry in the same transaction. No version check is made: concurrent updates
// on the same task resolve as last-write-wins at commit order.
func (repo taskRepository) UpdateTask(ctx context.Context, t task.Task, su *task.StatusUpdate) (task.Task, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE task
		SET title = $1, description = $2, status = $3, due_date = $4, assigned_to_id = $5, updated_at = $6
		WHERE id = $7`,
		t.Title, t.Description, string(t.Status), nullDue(t), t.AssignedToID, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Task{}, task.ErrNotFound
	}

	if su != nil {
		if err = insertStatusUpdate(ctx, tx, *su); err != nil {
			return task.Task{}, err
		}
	}

	t, err = repo.join(ctx, tx, t)
	if err != nil {
		return task.Task{}, err
	}

	if err = tx.Commit(); err != nil {
		return task.Task{}, errors.Wrap(err, "committing task")
	}
	return t, nil
}

// DeleteTask removes the ledger entries then the task, in one transaction.
func (repo taskRepository) DeleteTask(ctx context.Context, id int) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM task_status_update WHERE task_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting status history")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "committing delete")
}

func (repo taskRepository) CountTasksAssignedTo(ctx context.Context, userID int) (int, error) {
	var cnt int
	if err := repo.db.GetContext(ctx, &cnt, `SELECT COUNT(*) FROM task WHERE assigned_to_id = $1`, userID); err != nil {
		return 0, errors.Wrap(err, "counting assigned tasks")
	}
	return cnt, nil
}
