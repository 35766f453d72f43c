package calibration

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opidose/opidose/internal/platform/auth"
)

// Handler exposes read-only inspection of the learned state. Writes only
// happen through the learning pass; there is deliberately no mutation
// endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/calibration", auth.RequireRole("admin", "anesthesiologist"))
	g.GET("/factors/:metric", h.ListFactors)
	g.GET("/factors/:metric/value", h.GetFactor)
	g.GET("/case-counts/:procedureId", h.GetCaseCount)
}

var knownMetrics = map[Metric]bool{
	MetricProcedureBase: true, MetricPainSomatic: true, MetricPainVisceral: true,
	MetricPainNeuropathic: true, MetricAgeFactor: true, MetricWeightFactor: true,
	MetricASAFactor: true, MetricSexFactor: true, MetricIBWRatio: true,
	MetricABWRatio: true, MetricBMIFactor: true, MetricOpioidTolerance: true,
	MetricPainThreshold: true, MetricRenal: true, MetricFentanylTail: true,
	MetricSynergy: true, MetricAdjuvantPotency: true, MetricUserCalibration: true,
}

func (h *Handler) ListFactors(c echo.Context) error {
	metric := Metric(c.Param("metric"))
	if !knownMetrics[metric] {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown metric")
	}
	factors, err := h.svc.List(c.Request().Context(), metric)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if factors == nil {
		factors = []Factor{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"metric":  metric,
		"factors": factors,
	})
}

func (h *Handler) GetFactor(c echo.Context) error {
	metric := Metric(c.Param("metric"))
	if !knownMetrics[metric] {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown metric")
	}
	f, err := h.svc.store.Get(c.Request().Context(), metric, c.QueryParam("key"))
	if err == ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "no learned value")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) GetCaseCount(c echo.Context) error {
	n, err := h.svc.CaseCount(c.Request().Context(), c.Param("procedureId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"procedure_id": c.Param("procedureId"),
		"case_count":   n,
	})
}
