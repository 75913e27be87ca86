package dapp_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/httperrors"
	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/test"
	"github/chapool/cross-dapp/internal/wallet/tx"
)

func TestGetActionsDisconnected(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		res := test.PerformRequest(t, s, "GET", "/api/v1/dapp/actions", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var view dapp.View
		test.DecodeResponse(t, res, &view)
		assert.Equal(t, "disconnected", view.Session.Status)
		require.NotEmpty(t, view.Actions)
		assert.Equal(t, dapp.ActionConnect, view.Actions[0].ID)
		assert.True(t, view.Actions[0].Enabled)
	})
}

func TestPostActionConnectAndSign(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, w *test.Wallet) {
		res := test.PerformRequest(t, s, "POST", "/api/v1/dapp/actions/connect", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		test.WaitForView(t, s.App, func(v dapp.View) bool { return v.Session.Status == "connected" })

		res = test.PerformRequest(t, s, "GET", "/api/v1/dapp/session", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var session dapp.SessionView
		test.DecodeResponse(t, res, &session)
		assert.Equal(t, w.Address().Hex(), session.Account)
		assert.Equal(t, "eip155:612044", session.Chain)

		res = test.PerformRequest(t, s, "POST", "/api/v1/dapp/actions/personal_sign", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var result dapp.Result
		test.DecodeResponse(t, res, &result)
		assert.Equal(t, dapp.ActionPersonalSign, result.Action)
		require.NotNil(t, result.Valid)
		assert.True(t, *result.Valid)
	})
}

func TestPostActionErrors(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		tests := []struct {
			path     string
			code     int
			typ      string
			withBody bool
		}{
			{"/api/v1/dapp/actions/mint", http.StatusNotFound, httperrors.TypeUnknownAction, false},
			{"/api/v1/dapp/actions/personal_sign", http.StatusConflict, httperrors.TypeActionNotPermitted, false},
			{"/api/v1/dapp/actions/read_contract", http.StatusConflict, httperrors.TypeActionUnavailable, false},
			{"/api/v1/dapp/actions/network", http.StatusBadRequest, httperrors.TypeInvalidRequest, true},
		}

		for _, tt := range tests {
			var body any
			if tt.withBody {
				body = map[string]any{"args": map[string]string{dapp.ArgChain: "not-a-chain"}}
			}

			res := test.PerformRequest(t, s, "POST", tt.path, body, nil)
			assert.Equal(t, tt.code, res.Result().StatusCode, tt.path)

			var httpErr httperrors.HTTPError
			test.DecodeResponse(t, res, &httpErr)
			assert.Equal(t, tt.typ, httpErr.Type, tt.path)
		}
	})
}

func TestPostActionSwitchNetwork(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		test.Connect(t, s.App)

		body := map[string]any{"args": map[string]string{dapp.ArgChain: "eip155:1"}}
		res := test.PerformRequest(t, s, "POST", "/api/v1/dapp/actions/network", body, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		view := test.WaitForView(t, s.App, func(v dapp.View) bool { return v.Session.Chain == "eip155:1" })
		assert.Equal(t, "Ethereum", view.Session.ChainName)

		res = test.PerformRequest(t, s, "POST", "/api/v1/dapp/actions/read_contract", nil, nil)
		assert.Equal(t, http.StatusConflict, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/dapp/actions/send_erc20_fee_payer", nil, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, res.Result().StatusCode)

		var httpErr httperrors.HTTPError
		test.DecodeResponse(t, res, &httpErr)
		assert.Equal(t, httperrors.TypeUnsupportedTxKind, httpErr.Type)
	})
}

func TestGetTransaction(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		test.Connect(t, s.App)

		res := test.PerformRequest(t, s, "POST", "/api/v1/dapp/actions/send_native", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var result dapp.Result
		test.DecodeResponse(t, res, &result)
		require.NotEmpty(t, result.TxHash)

		res = test.PerformRequest(t, s, "GET", "/api/v1/dapp/tx/"+result.TxHash, nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var outcome tx.Outcome
		test.DecodeResponse(t, res, &outcome)
		assert.Equal(t, tx.StatusConfirmed, outcome.Status)
		assert.Equal(t, uint64(7), outcome.BlockNumber)
	})
}

func TestGetTransactionNotTracked(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		hash := "0x00000000000000000000000000000000000000000000000000000000000000ff"

		res := test.PerformRequest(t, s, "GET", "/api/v1/dapp/tx/"+hash, nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/dapp/tx/0x1234", nil, nil)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		// polling a foreign hash needs an active chain
		res = test.PerformRequest(t, s, "GET", "/api/v1/dapp/tx/"+hash+"?poll=true", nil, nil)
		assert.Equal(t, http.StatusConflict, res.Result().StatusCode)

		test.Connect(t, s.App)

		res = test.PerformRequest(t, s, "GET", "/api/v1/dapp/tx/"+hash+"?poll=true", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var outcome tx.Outcome
		test.DecodeResponse(t, res, &outcome)
		assert.Equal(t, tx.StatusConfirmed, outcome.Status)
		assert.Equal(t, "eip155:612044", outcome.Chain.String())
	})
}
