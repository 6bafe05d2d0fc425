package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/storage/database"
)

func registerHealthAPI(g *echo.Group, db core.DB) {
	g.GET("/test-db", func(ctx echo.Context) error {
		if db == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no database configured")
		}
		if err := database.Check(ctx.Request().Context(), db); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "time": time.Now().UTC()})
	})
}
