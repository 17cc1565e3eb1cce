package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/user"
)

type followupApi struct {
	svc      followup.Service
	validate *validator.Validate
}

func registerFollowupAPI(g *echo.Group, session echo.MiddlewareFunc, svc followup.Service, validate *validator.Validate) {
	api := followupApi{svc: svc, validate: validate}

	fg := g.Group("/followups", session, permissionMiddleware(user.PermFollowup))
	fg.GET("", api.query)
	fg.POST("", api.create)
	fg.PUT("/update-status", api.updateStatus)

	// detail endpoints
	fg.GET("/:id", api.retrieve)
	fg.PUT("/:id", api.update)
	fg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *followupApi) create(ctx echo.Context) error {
	var data followup.NewFollowup
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating followup")
	}
	return sendData(ctx, http.StatusCreated, f)
}

func (api *followupApi) query(ctx echo.Context) error {
	filter := new(followup.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return sendData(ctx, http.StatusOK, []followup.Followup{})
	}

	followups, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying followups")
	}
	return sendData(ctx, http.StatusOK, followups)
}

func (api *followupApi) retrieve(ctx echo.Context) error {
	f, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting followup")
	}
	return sendData(ctx, http.StatusOK, f)
}

func (api *followupApi) update(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := followup.ValidateID(id); err != nil {
		return err
	}

	var data followup.NewFollowup
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating followup")
	}
	return sendData(ctx, http.StatusOK, f)
}

func (api *followupApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting followup")
	}
	return sendData(ctx, http.StatusOK, echo.Map{"id": id}, "Followup deleted successfully")
}

func (api *followupApi) updateStatus(ctx echo.Context) error {
	var data followup.UpdateStatus
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.UpdateStatusForLead(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating followup statuses")
	}
	return sendData(ctx, http.StatusOK, res, fmt.Sprintf("Updated %d followups", res.ModifiedCount))
}
