package router

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/handlers"
	"github/chapool/cross-dapp/internal/api/httperrors"
)

// Init builds the echo instance, its route groups and attaches every handler.
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.HTTPErrorHandler = httperrors.HTTPErrorHandler(s.Echo)

	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(requestLogger(s))

	s.Router = &api.Router{
		Routes:     nil,
		Root:       s.Echo.Group(""),
		Management: s.Echo.Group("/-"),
		APIV1Dapp:  s.Echo.Group("/api/v1/dapp"),
	}

	handlers.AttachAllRoutes(s)
}

func requestLogger(s *api.Server) echo.MiddlewareFunc {
	level := s.Config.Logger.RequestLevel

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			e := log.WithLevel(level)
			if v.Error != nil {
				e = log.Warn().Err(v.Error)
			}
			e.Str("id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")

			return nil
		},
	})
}
