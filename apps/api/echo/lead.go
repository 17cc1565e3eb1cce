package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/user"
)

type leadApi struct {
	svc      lead.Service
	validate *validator.Validate
}

func registerLeadAPI(g *echo.Group, session echo.MiddlewareFunc, svc lead.Service, validate *validator.Validate) {
	api := leadApi{svc: svc, validate: validate}

	lg := g.Group("/leads", session)
	lg.GET("", api.query, permissionMiddleware(user.PermLeads, user.PermPipeline, user.PermSearch))
	lg.POST("", api.create, permissionMiddleware(user.PermAddLeads))
	lg.GET("/pipeline", api.pipeline, permissionMiddleware(user.PermPipeline))

	// detail endpoints
	lg.GET("/:id", api.retrieve, permissionMiddleware(user.PermLeads, user.PermPipeline, user.PermSearch))
	lg.PUT("/:id", api.update, permissionMiddleware(user.PermLeads, user.PermPipeline))
	lg.DELETE("/:id", api.destroy, permissionMiddleware(user.PermLeads))

	dg := g.Group("/dashboard", session)
	dg.GET("/stats", api.stats, permissionMiddleware(user.PermDashboard))
}

// Handlers

func (api *leadApi) create(ctx echo.Context) error {
	var data lead.NewLead
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return sendData(ctx, http.StatusCreated, l)
}

func (api *leadApi) query(ctx echo.Context) error {
	filter := new(lead.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return sendData(ctx, http.StatusOK, []lead.Lead{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	leads, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	return sendData(ctx, http.StatusOK, leads)
}

func (api *leadApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lead")
	}
	return sendData(ctx, http.StatusOK, l)
}

func (api *leadApi) update(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := lead.ValidateID(id); err != nil {
		return err
	}

	var data lead.UpdateLead
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return sendData(ctx, http.StatusOK, l)
}

func (api *leadApi) destroy(ctx echo.Context) error {
	res, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting lead")
	}
	return sendData(ctx, http.StatusOK, res, "Lead and associated followups deleted successfully")
}

func (api *leadApi) pipeline(ctx echo.Context) error {
	stages, err := api.svc.Pipeline(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "grouping leads by status")
	}
	return sendData(ctx, http.StatusOK, stages)
}

func (api *leadApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return sendData(ctx, http.StatusOK, stats)
}
