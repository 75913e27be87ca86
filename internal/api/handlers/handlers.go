package handlers

import (
	"github.com/labstack/echo/v4"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/handlers/common"
	"github/chapool/cross-dapp/internal/api/handlers/dapp"
)

func AttachAllRoutes(s *api.Server) {
	s.Router.Routes = []*echo.Route{
		common.GetReadyRoute(s),
		common.GetHealthyRoute(s),
		common.GetMetricsRoute(s),
		dapp.GetActionsRoute(s),
		dapp.PostActionRoute(s),
		dapp.GetSessionRoute(s),
		dapp.GetTransactionRoute(s),
	}
}
