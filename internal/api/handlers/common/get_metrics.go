package common

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github/chapool/cross-dapp/internal/api"
)

func GetMetricsRoute(s *api.Server) *echo.Route {
	path := s.Config.Management.MetricsPath
	if path == "" {
		path = "/metrics"
	}

	handler := promhttp.HandlerFor(s.App.Metrics().Registry, promhttp.HandlerOpts{})

	return s.Router.Root.GET(path, echo.WrapHandler(handler))
}
