package dapp

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/httperrors"
	"github/chapool/cross-dapp/internal/util"
	"github/chapool/cross-dapp/internal/wallet/tx"
)

func GetTransactionRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Dapp.GET("/tx/:hash", getTransactionHandler(s))
}

// getTransactionHandler returns the recorded outcome of a hash. With
// ?poll=true it polls the chain first, using the configured bounds.
func getTransactionHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		raw, err := hexutil.Decode(c.Param("hash"))
		if err != nil || len(raw) != common.HashLength {
			return httperrors.ErrBadRequestInvalidHash
		}
		hash := common.BytesToHash(raw)

		orch := s.App.Orchestrator()

		if poll, _ := strconv.ParseBool(c.QueryParam("poll")); poll {
			outcome, err := orch.Poll(ctx, hash, tx.PollOptions{})
			if err != nil {
				log.Debug().Err(err).Str("hash", hash.Hex()).Msg("Poll did not finish")
				return err
			}

			return c.JSON(http.StatusOK, outcome)
		}

		outcome, found, err := orch.Outcome(ctx, hash)
		if err != nil {
			return err
		}
		if !found {
			return httperrors.ErrNotFoundTransaction
		}

		return c.JSON(http.StatusOK, outcome)
	}
}
