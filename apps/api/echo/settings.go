package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/soptable/portal/core/settings"
)

// titledPages are the pages whose title an admin may rename through the API.
var titledPages = []string{"survey", "plan", "timetable"}

type settingsApi struct {
	svc *settings.Service
}

type TitleRequest struct {
	Title string `json:"title"`
}

func registerSettingsAPI(g *echo.Group, svc *settings.Service) {
	api := settingsApi{svc: svc}

	g.GET("/role-menu", api.roleMenu)
	g.POST("/role-menu", api.saveRoleMenu)
	g.GET("/role-menu/log", api.roleMenuLog)

	for _, page := range titledPages {
		g.GET("/"+page+"-title", api.title(page))
		g.POST("/"+page+"-title", api.setTitle(page))
	}
}

func (api *settingsApi) roleMenu(ctx echo.Context) error {
	rm, err := api.svc.RoleMenu(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting role menu")
	}
	return ctx.JSON(http.StatusOK, rm)
}

func (api *settingsApi) saveRoleMenu(ctx echo.Context) error {
	var rm settings.RoleMenu
	if err := ctx.Bind(&rm); err != nil {
		return errors.Wrap(err, "binding to RoleMenu")
	}
	changes, err := api.svc.SaveRoleMenu(ctx.Request().Context(), rm)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"changes": changes})
}

func (api *settingsApi) roleMenuLog(ctx echo.Context) error {
	entries, err := api.svc.RoleMenuLog(ctx.Request().Context(), queryInt(ctx, limitParam, 0))
	if err != nil {
		return errors.Wrap(err, "querying role menu log")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *settingsApi) title(page string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		title, err := api.svc.Title(ctx.Request().Context(), page)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, TitleRequest{Title: title})
	}
}

func (api *settingsApi) setTitle(page string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data TitleRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to TitleRequest")
		}
		title, err := api.svc.SetTitle(ctx.Request().Context(), page, data.Title)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, TitleRequest{Title: title})
	}
}
