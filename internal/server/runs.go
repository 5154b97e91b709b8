package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mavik-ai/prescreen/internal/store"
)

type RunsHandler struct {
	Store *store.Store
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.GET("/runs", h.listRuns)
	g.GET("/runs/:run_id", h.getRun)
}

// listRuns returns recent runs, newest first.
//
//	@Summary	List runs
//	@Tags		runs
//	@Param		limit	query	int	false	"Max rows (default 50)"
//	@Produce	json
//	@Success	200	{array}		store.Run
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/api/runs [get]
func (h *RunsHandler) listRuns(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run audit not configured")
	}
	limit := 50
	if val := strings.TrimSpace(c.QueryParam("limit")); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := h.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

// getRun returns a single run with its tool events.
//
//	@Summary	Get run
//	@Tags		runs
//	@Param		run_id	path	string	true	"Run ID"
//	@Produce	json
//	@Success	200	{object}	store.Run
//	@Failure	404	{object}	map[string]interface{}
//	@Router		/api/runs/{run_id} [get]
func (h *RunsHandler) getRun(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run audit not configured")
	}
	runID := c.Param("run_id")
	run, found, err := h.Store.GetRun(c.Request().Context(), runID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}
