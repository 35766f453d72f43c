package dosing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opidose/opidose/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dose", auth.RequireRole("admin", "anesthesiologist"))
	g.POST("/calculate", h.Calculate)
	g.GET("/fentanyl-residual", h.FentanylResidual)
}

// Calculate returns a dose recommendation with the full stage breakdown.
func (h *Handler) Calculate(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Calculate(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, ErrUnknownProcedure) || errors.Is(err, ErrUnknownDrug) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// FentanylResidual reports how much of an intraoperative fentanyl dose is
// still active after a given number of minutes.
func (h *Handler) FentanylResidual(c echo.Context) error {
	dose, err := strconv.ParseFloat(c.QueryParam("dose_mcg"), 64)
	if err != nil || dose < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "dose_mcg must be a non-negative number")
	}
	minutes, err := strconv.ParseFloat(c.QueryParam("minutes"), 64)
	if err != nil || minutes < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "minutes must be a non-negative number")
	}
	remaining := FentanylRemainingMCG(dose, minutes)
	return c.JSON(http.StatusOK, map[string]float64{
		"dose_mcg":      dose,
		"minutes":       minutes,
		"remaining_mcg": remaining,
		"remaining_mme": FentanylMME(remaining),
	})
}
