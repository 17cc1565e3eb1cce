package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
)

type settingsApi struct {
	svc      settings.Service
	validate *validator.Validate
}

func registerSettingsAPI(g *echo.Group, session echo.MiddlewareFunc, svc settings.Service, validate *validator.Validate) {
	api := settingsApi{svc: svc, validate: validate}

	sg := g.Group("/settings", session)
	sg.GET("", api.retrieve)
	sg.PUT("", api.update, permissionMiddleware(user.PermSettings))
}

func (api *settingsApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return sendData(ctx, http.StatusOK, s)
}

func (api *settingsApi) update(ctx echo.Context) error {
	var data settings.UpdateSettings
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Put(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return sendData(ctx, http.StatusOK, s)
}
