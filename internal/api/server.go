package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/dapp"
)

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
	APIV1Dapp  *echo.Group
}

// Server keeps the HTTP surface and the app it exposes.
//
// Components labeled as `wire:"-"` are initialized by router.Init after the
// server has been constructed.
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	Config config.Dapp
	App    *dapp.App
}

func NewServer(cfg config.Dapp, app *dapp.App) *Server {
	return &Server{
		Config: cfg,
		App:    app,
	}
}

func (s *Server) Ready() bool {
	if s.Echo == nil || s.Router == nil || s.App == nil {
		log.Debug().Msg("Server is not fully initialized")
		return false
	}

	return true
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Management.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	return errs
}
