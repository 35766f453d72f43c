package cases

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opidose/opidose/internal/domain/dosing"
	"github.com/opidose/opidose/internal/domain/outcome"
	"github.com/opidose/opidose/internal/platform/auth"
	"github.com/opidose/opidose/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("/cases", auth.RequireRole("admin", "anesthesiologist", "nurse"))
	readGroup.GET("", h.List)
	readGroup.GET("/:id", h.Get)

	writeGroup := api.Group("/cases", auth.RequireRole("admin", "anesthesiologist"))
	writeGroup.POST("", h.Create)
	writeGroup.POST("/:id/outcome", h.Complete)
	writeGroup.PUT("/:id/outcome", h.Amend)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, dosing.ErrUnknownProcedure),
		errors.Is(err, dosing.ErrUnknownDrug):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrNotCompleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func caseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req dosing.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// The case is attributed to the authenticated subject; a user_id in
	// the body must not select another user's calibration factors.
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		req.UserID = uid
	}
	created, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("procedure_id"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

type completeResponse struct {
	Case     *Case           `json:"case"`
	Learning *outcome.Result `json:"learning"`
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var rep outcome.Report
	if err := c.Bind(&rep); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, res, err := h.svc.Complete(c.Request().Context(), id, rep)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, completeResponse{Case: cs, Learning: res})
}

type amendRequest struct {
	outcome.Report
	Reason string `json:"reason"`
}

func (h *Handler) Amend(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req amendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, err := h.svc.Amend(c.Request().Context(), id, req.Report, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}
