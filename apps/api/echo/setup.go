package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/user"
)

type setupApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerSetupAPI(g *echo.Group, svc user.Service, validate *validator.Validate) {
	api := setupApi{svc: svc, validate: validate}

	g.GET("/setup", api.status)
	g.POST("/setup", api.setup)
}

type SetupStatus struct {
	SetupRequired bool `json:"setupRequired"`
	UserCount     int  `json:"userCount"`
}

func (api *setupApi) status(ctx echo.Context) error {
	count, err := api.svc.Count(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	return ctx.JSON(http.StatusOK, SetupStatus{SetupRequired: count == 0, UserCount: count})
}

func (api *setupApi) setup(ctx echo.Context) error {
	// refuse before looking at the body
	count, err := api.svc.Count(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return user.ErrSetupDone
	}

	var data user.SetupAdmin
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Setup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating admin user")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "Admin user created successfully", "user": usr})
}
