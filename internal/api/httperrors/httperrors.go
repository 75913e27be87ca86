package httperrors

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/wallet"
)

const (
	TypeGeneric            = "generic"
	TypeUnknownAction      = "unknown_action"
	TypeActionUnavailable  = "action_unavailable"
	TypeActionNotPermitted = "action_not_permitted"
	TypeNotConnected       = "not_connected"
	TypeNoActiveChain      = "no_active_chain"
	TypeChainMismatch      = "chain_mismatch"
	TypeUnsupportedTxKind  = "unsupported_tx_kind"
	TypeInvalidRequest     = "invalid_request"
	TypeRemoteRejection    = "remote_rejection"
	TypeTransient          = "transient_network"
	TypeNotFound           = "not_found"
)

// HTTPError is the JSON body of every failed request.
type HTTPError struct {
	Code  int    `json:"status"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

func NewHTTPError(code int, errorType string, title string) *HTTPError {
	return &HTTPError{Code: code, Type: errorType, Title: title}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTPError %d (%s): %s", e.Code, e.Type, e.Title)
}

var (
	ErrBadRequestInvalidHash = NewHTTPError(http.StatusBadRequest, TypeInvalidRequest, "Transaction hash must be 32 bytes of hex.")
	ErrNotFoundTransaction   = NewHTTPError(http.StatusNotFound, TypeNotFound, "Transaction not tracked.")
)

type mapping struct {
	target error
	code   int
	typ    string
}

var mappings = []mapping{
	{dapp.ErrUnknownAction, http.StatusNotFound, TypeUnknownAction},
	{dapp.ErrActionUnavailable, http.StatusConflict, TypeActionUnavailable},
	{dapp.ErrActionNotPermitted, http.StatusConflict, TypeActionNotPermitted},
	{wallet.ErrNotConnected, http.StatusConflict, TypeNotConnected},
	{wallet.ErrNoActiveChain, http.StatusConflict, TypeNoActiveChain},
	{wallet.ErrChainMismatch, http.StatusConflict, TypeChainMismatch},
	{wallet.ErrUnsupportedTxKind, http.StatusUnprocessableEntity, TypeUnsupportedTxKind},
	{wallet.ErrInvalidABI, http.StatusBadRequest, TypeInvalidRequest},
	{wallet.ErrMethodNotFound, http.StatusBadRequest, TypeInvalidRequest},
	{wallet.ErrSchemaMismatch, http.StatusBadRequest, TypeInvalidRequest},
	{wallet.ErrInvalidArguments, http.StatusBadRequest, TypeInvalidRequest},
	{wallet.ErrTransientNetwork, http.StatusServiceUnavailable, TypeTransient},
}

// FromError maps err to the HTTPError returned to clients.
func FromError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return NewHTTPError(m.code, m.typ, err.Error())
		}
	}

	var rejection *wallet.RemoteRejection
	if errors.As(err, &rejection) {
		return NewHTTPError(http.StatusUnprocessableEntity, TypeRemoteRejection, rejection.Reason)
	}

	return NewHTTPError(http.StatusInternalServerError, TypeGeneric, http.StatusText(http.StatusInternalServerError))
}

// HTTPErrorHandler renders domain errors as HTTPError bodies and leaves
// echo's own errors to the default handler.
func HTTPErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		httpErr := FromError(err)
		if httpErr.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		}

		if c.Response().Committed {
			return
		}
		if err := c.JSON(httpErr.Code, httpErr); err != nil {
			log.Error().Err(err).Msg("Failed to write error response")
		}
	}
}
