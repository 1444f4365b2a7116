package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutorlab/session-guard/internal/api/middleware"
)

// DashboardHandler answers the route-guard checks for each dashboard. The
// dashboards themselves live in the web app; reaching the handler means the
// visitor may render them.
type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Show handles GET /v1/dashboards/:name.
//
// @Summary      Route-guard check for a dashboard
// @Tags         dashboards
// @Produce      json
// @Security     BearerAuth
// @Param        X-Client-ID  header    string  true  "Browser client id"
// @Param        name         path      string  true  "admin, teacher, student or parent"
// @Success      200          {object}  dashboardResponse
// @Failure      401          {object}  errorResponse
// @Failure      403          {object}  errorResponse
// @Failure      503          {object}  errorResponse
// @Router       /v1/dashboards/{name} [get]
func (h *DashboardHandler) Show(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, ok := middleware.SnapshotFrom(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "route guard did not run")
		}
		return c.JSON(http.StatusOK, dashboardResponse{
			Dashboard: name,
			Role:      string(snap.State.EffectiveRole()),
			Offline:   snap.Offline(),
		})
	}
}
