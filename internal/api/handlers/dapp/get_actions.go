package dapp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github/chapool/cross-dapp/internal/api"
)

func GetActionsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Dapp.GET("/actions", getActionsHandler(s))
}

// getActionsHandler returns the whole view: session summary, the actions
// offered on it and any notice.
func getActionsHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.App.View())
	}
}
