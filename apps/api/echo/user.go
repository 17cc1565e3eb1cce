package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/user"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type userApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, session echo.MiddlewareFunc, svc user.Service, validate *validator.Validate) {
	api := userApi{svc: svc, validate: validate}

	ug := g.Group("/users", session, permissionMiddleware(user.PermUserManagement))
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.GET("/roles", api.queryRoles)

	// detail endpoints
	dg := ug.Group("/:id", objectUserMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

type (
	userResponse struct {
		Message string    `json:"message,omitempty"`
		User    user.User `json:"user"`
	}

	// listedUser replaces the creator's ID with a summary of the creator.
	listedUser struct {
		user.User
		CreatedBy *user.CreatorSummary `json:"createdBy,omitempty"`
	}

	usersResponse struct {
		Users []listedUser `json:"users"`
	}
)

// checkRolePriority fails when actor tries to hand out a role above their own.
func checkRolePriority(actor user.User, role string) error {
	if user.RolePriority(role) > user.RolePriority(actor.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}
	return nil
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = checkRolePriority(ctxUsr, data.Role); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, userResponse{User: usr})
}

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryActive(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}

	creators := make(map[string]*user.CreatorSummary, len(users))
	for _, usr := range users {
		creators[usr.ID] = &user.CreatorSummary{ID: usr.ID, Username: usr.Username}
	}
	listed := make([]listedUser, 0, len(users))
	for _, usr := range users {
		if usr.CreatedBy != "" {
			if _, ok := creators[usr.CreatedBy]; !ok {
				// inactive creators are not part of the list
				creator, err := api.svc.GetByID(ctx.Request().Context(), usr.CreatedBy)
				switch {
				case err == nil:
					creators[creator.ID] = &user.CreatorSummary{ID: creator.ID, Username: creator.Username}
				case errors.Cause(err) == user.ErrNotFound:
					creators[usr.CreatedBy] = nil
				default:
					return errors.Wrap(err, "getting user creator")
				}
			}
		}
		listed = append(listed, listedUser{User: usr, CreatedBy: creators[usr.CreatedBy]})
	}
	return ctx.JSON(http.StatusOK, usersResponse{Users: listed})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := getObjectUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, userResponse{User: usr})
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := getObjectUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if data.Role != usr.Role {
		if err = checkRolePriority(ctxUsr, data.Role); err != nil {
			return err
		}
	}
	// Say No to Suicide! ctxUser cannot deactivate themselves
	if usr.ID == ctxUsr.ID && data.IsActive != nil && !*data.IsActive {
		return errHttpForbidden
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, userResponse{User: usr})
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := getObjectUser(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	usr, err = api.svc.Deactivate(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "deactivating user")
	}
	return ctx.JSON(http.StatusOK, userResponse{Message: "User deleted successfully", User: usr})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"roles": user.Roles})
}

var contextObjectKey = "object"

// objectUserMiddleware loads the User named by the :id path param into the context.
func objectUserMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set(contextObjectKey, usr)
			return next(ctx)
		}
	}
}

func getObjectUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextObjectKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errors.New("user object not found in echo.Context")
}
