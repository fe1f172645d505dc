package echoapi

import (
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type authApi struct {
	conf       *core.Config
	svc        user.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		conf:       deps.Conf,
		svc:        deps.UserSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)

	// authed endpoints
	tg := ag.Group("", jwt)
	tg.POST("/token-refresh", api.refreshToken)
	tg.GET("/me", api.me)
}

// Handlers

// register creates a new account and logs it in. The very first account of
// the system may claim any role (the bootstrap admin); after that only an
// authenticated admin may grant a role other than TEACHER.
func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	if data.Role != user.RoleTeacher {
		if err := api.checkRoleGrant(ctx); err != nil {
			return err
		}
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{User: usr, Token: token})
}

// checkRoleGrant decides whether the caller may set a role other than TEACHER:
// allowed for an authenticated admin, or while no user exists yet.
func (api *authApi) checkRoleGrant(ctx echo.Context) error {
	if claims := parseOptionalClaims(ctx, api.conf); claims != nil && claims.IsAdmin {
		return nil
	}
	cnt, err := api.svc.Count(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	if cnt > 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}
	return nil
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, claims, err := authenticate(ctx.Request().Context(), api.conf, data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, AuthResponse{User: usr, Token: token})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type teacherApi struct {
	svc      user.ServiceInterface
	validate *validator.Validate
}

// registerUserAPI mounts the teacher management endpoints. The listing is
// open to the HOD as well; everything else is admin only.
func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := teacherApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	tg := g.Group("/users/teachers", jwt)

	// the HOD needs the teacher list to pick assignees
	tg.GET("", api.query, hodOrAdminMiddleware())

	ag := tg.Group("", adminMiddleware())
	ag.POST("", api.create)
	ag.GET("/roles", api.queryRoles)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *teacherApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}

	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []user.User{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data user.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *teacherApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	id, err := parseIntParam(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := api.svc.GetTeacherByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding teacher by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *teacherApi) update(ctx echo.Context) error {
	id, err := parseIntParam(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := api.svc.GetTeacherByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding teacher by ID")
	}

	var data user.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	if err := data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.UpdateTeacher(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	id, err := parseIntParam(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTeacher(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func parseIntParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// AuthResponse is returned by register and login.
	AuthResponse struct {
		User  user.User `json:"user"`
		Token string    `json:"token"`
	}

	// LoginResponse is returned by token-refresh.
	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
