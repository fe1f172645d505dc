package user

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

// HODExistsError is returned when an operation would result in more than one
// user holding the HOD role.
type HODExistsError struct {
	Current User
}

func (err *HODExistsError) Error() string {
	return fmt.Sprintf("an HOD is already assigned: %s <%s>", err.Current.Name, err.Current.Email)
}

type (
	// Repository persists users.
	//
	// CreateUser and UpdateUser enforce the single-HOD invariant: when the
	// written user holds RoleHOD, the existence check for another HOD and the
	// write must happen inside one transaction; *HODExistsError is returned
	// on violation.
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryUsersByRole(ctx context.Context, roles ...string) ([]User, error)
		CountUsers(ctx context.Context) (int, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetHOD(ctx context.Context) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int) error
	}

	// AssignmentChecker reports how many tasks are currently assigned to a user.
	AssignmentChecker interface {
		CountTasksAssignedTo(ctx context.Context, userID int) (int, error)
	}

	ServiceInterface interface {
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		CreateTeacher(ctx context.Context, nt NewTeacher) (User, error)
		Count(ctx context.Context) (int, error)
		QueryTeachers(ctx context.Context, filter *QueryFilter) ([]User, error)
		GetByID(ctx context.Context, id int) (User, error)
		GetTeacherByID(ctx context.Context, id int) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		UpdateTeacher(ctx context.Context, id int, ut UpdateTeacher) (User, error)
		DeleteTeacher(ctx context.Context, id int) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo        Repository
		assignments AssignmentChecker
		conf        *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, assignments AssignmentChecker, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		assignments: assignments,
		conf:        conf,
	}
}

func (svc *Service) CheckEmailUniqueness(email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a new account. The caller is responsible for deciding
// whether the requested role may be granted (bootstrap / admin rules).
// Registering as HOD conflicts when an HOD is already assigned.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role == RoleHOD {
		hod, err := svc.repo.GetHOD(ctx)
		if err == nil {
			return User{}, &HODExistsError{Current: hod}
		}
		if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "finding HOD")
		}
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (User, error) {
	role := RoleTeacher
	if nt.IsHOD {
		role = RoleHOD
	}
	now := time.Now().UTC()
	usr := User{
		Name:      nt.Name,
		Email:     nt.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nt.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountUsers(ctx)
}

// QueryTeachers returns teacher accounts, including the HOD unless excluded.
func (svc *Service) QueryTeachers(ctx context.Context, filter *QueryFilter) ([]User, error) {
	roles := AssignableRoles
	if filter != nil && filter.ExcludeHOD {
		roles = []string{RoleTeacher}
	}
	return svc.repo.QueryUsersByRole(ctx, roles...)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

// GetTeacherByID is GetByID restricted to teacher accounts (TEACHER or HOD);
// other accounts are reported as absent.
func (svc *Service) GetTeacherByID(ctx context.Context, id int) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.Assignable() {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) UpdateTeacher(ctx context.Context, id int, ut UpdateTeacher) (User, error) {
	usr, err := svc.GetTeacherByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if ut.Name != "" {
		usr.Name = ut.Name
	}
	if ut.Email != "" {
		usr.Email = ut.Email
	}
	if ut.IsHOD != nil {
		if *ut.IsHOD {
			usr.Role = RoleHOD
		} else {
			usr.Role = RoleTeacher
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) DeleteTeacher(ctx context.Context, id int) error {
	usr, err := svc.GetTeacherByID(ctx, id)
	if err != nil {
		return err
	}

	cnt, err := svc.assignments.CountTasksAssignedTo(ctx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting assigned tasks")
	}
	if cnt > 0 {
		return core.NewValidationError(fmt.Errorf(
			"cannot delete a teacher with %d assigned task(s); reassign or delete the tasks first", cnt))
	}
	return svc.repo.DeleteUsersByID(ctx, usr.ID)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
