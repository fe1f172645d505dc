package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/kazi/core"
)

// Roles
const (
	RoleAdmin   = "ADMIN"
	RoleHOD     = "HOD"
	RoleTeacher = "TEACHER"
)

var (
	AllRoles = []string{RoleAdmin, RoleHOD, RoleTeacher}

	// AssignableRoles are the roles a task may be delegated to.
	AssignableRoles = []string{RoleHOD, RoleTeacher}

	Roles = []Role{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Head of Department", Value: RoleHOD},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     *bool     `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsHOD() bool {
	return u.Role == RoleHOD
}

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Assignable reports whether a task may be delegated to this user.
func (u *User) Assignable() bool {
	return u.IsTeacher() || u.IsHOD()
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleTeacher
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// NewTeacher contains information needed to create a teacher account
// via the admin-only teacher management API.
type NewTeacher struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	IsHOD           bool   `json:"is_hod"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nt.Email)
}

// UpdateTeacher defines what information may be provided to modify an existing teacher.
// Absent fields are left untouched.
type UpdateTeacher struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	IsHOD *bool  `json:"is_hod"`
}

func (ut *UpdateTeacher) Validate(origUsr User, validate *validator.Validate, svc ServiceInterface) error {
	ut.Name = core.CleanString(ut.Name)
	ut.Email = core.CleanString(ut.Email, true /* lower */)

	if err := validate.Struct(ut); err != nil {
		return err
	}
	if ut.Email != "" && ut.Email != origUsr.Email {
		return svc.CheckEmailUniqueness(ut.Email, origUsr)
	}
	return nil
}

type QueryFilter struct {
	ExcludeHOD bool `query:"exclude_hod"`
}
