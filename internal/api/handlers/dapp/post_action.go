package dapp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/httperrors"
	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/util"
)

// PostActionPayload carries the optional action arguments.
type PostActionPayload struct {
	Args dapp.Args `json:"args"`
}

func PostActionRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Dapp.POST("/actions/:id", postActionHandler(s))
}

func postActionHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		id := c.Param("id")

		var body PostActionPayload
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&body); err != nil {
				return httperrors.NewHTTPError(http.StatusBadRequest, httperrors.TypeInvalidRequest, "Malformed action payload.")
			}
		}

		result, err := s.App.Invoke(ctx, id, body.Args)
		if err != nil {
			log.Debug().Err(err).Str("action", id).Msg("Action rejected")
			return err
		}

		return c.JSON(http.StatusOK, result)
	}
}
