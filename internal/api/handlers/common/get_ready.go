package common

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github/chapool/cross-dapp/internal/api"
)

// statusNotReady is what load balancers see until the server is wired.
const statusNotReady = 521

func GetReadyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/ready", getReadyHandler(s))
}

// readiness only covers wiring; a disconnected wallet is a normal state.
func getReadyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			return c.String(statusNotReady, "Not ready.")
		}

		return c.String(http.StatusOK, "Ready.")
	}
}
