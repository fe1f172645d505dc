package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/user"
)

type userRow struct {
	ID           int          `db:"id"`
	Name         string       `db:"name"`
	Email        string       `db:"email"`
	Role         string       `db:"role"`
	IsActive     bool         `db:"is_active"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
	usr.SetActive(r.IsActive)
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT EXISTS (SELECT 1 FROM "user" WHERE email = $1)`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		query, args, err = sqlx.In(`SELECT EXISTS (SELECT 1 FROM "user" WHERE email = ? AND id NOT IN (?))`, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query = repo.db.Rebind(query)
	}

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

// lockHODRole serializes HOD promotions within the transaction so that two
// near-simultaneous promotions cannot both pass the single-HOD check.
func lockHODRole(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('user:role:hod'))`)
	return errors.Wrap(err, "acquiring HOD lock")
}

// checkSingleHOD returns *user.HODExistsError when a HOD other than
// excludedID exists. Must run inside the same transaction as the write.
func checkSingleHOD(ctx context.Context, tx *sqlx.Tx, excludedID int) error {
	var row userRow
	err := tx.GetContext(ctx, &row, `SELECT * FROM "user" WHERE role = $1 AND id <> $2 LIMIT 1`, user.RoleHOD, excludedID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking current HOD")
	}
	return &user.HODExistsError{Current: row.user()}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if usr.Role == user.RoleHOD {
		if err = lockHODRole(ctx, tx); err != nil {
			return user.User{}, err
		}
		if err = checkSingleHOD(ctx, tx, 0); err != nil {
			return user.User{}, err
		}
	}

	isActive := usr.IsActive == nil || *usr.IsActive
	err = tx.QueryRowContext(ctx, `
		INSERT INTO "user" (name, email, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		usr.Name, usr.Email, usr.Role, isActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}

	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsersByRole(ctx context.Context, roles ...string) ([]user.User, error) {
	query, args, err := sqlx.In(`SELECT * FROM "user" WHERE role IN (?) ORDER BY id`, roles)
	if err != nil {
		return nil, errors.Wrap(err, "building role query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users by role")
	}
	return rowsToUsers(rows), nil
}

func (repo userRepository) CountUsers(ctx context.Context) (int, error) {
	var cnt int
	if err := repo.db.GetContext(ctx, &cnt, `SELECT COUNT(*) FROM "user"`); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return cnt, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, "finding user by ID")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE email = $1`, email); err != nil {
		return user.User{}, trapNoRowsErr(err, "finding user by email")
	}
	return row.user(), nil
}

func (repo userRepository) GetHOD(ctx context.Context) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE role = $1 LIMIT 1`, user.RoleHOD); err != nil {
		return user.User{}, trapNoRowsErr(err, "finding HOD")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if usr.Role == user.RoleHOD {
		if err = lockHODRole(ctx, tx); err != nil {
			return user.User{}, err
		}
		if err = checkSingleHOD(ctx, tx, usr.ID); err != nil {
			return user.User{}, err
		}
	}

	var lastLogin sql.NullTime
	if !usr.LastLogin.IsZero() {
		lastLogin = sql.NullTime{Time: usr.LastLogin, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE "user"
		SET name = $1, email = $2, role = $3,
		    is_active = COALESCE($4, is_active),
		    password_hash = COALESCE($5, password_hash),
		    updated_at = $6,
		    last_login = COALESCE($7, last_login)
		WHERE id = $8`,
		usr.Name, usr.Email, usr.Role, usr.IsActive, usr.PasswordHash, usr.UpdatedAt, lastLogin, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err = tx.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, usr.ID); err != nil {
		return user.User{}, trapNoRowsErr(err, "reloading user")
	}

	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing user")
	}
	return row.user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func rowsToUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}
