package common_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/test"
)

func TestGetReadyReadiness(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		res := test.PerformRequest(t, s, "GET", "/-/ready", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		require.Equal(t, "Ready.", res.Body.String())
	})
}

func TestGetReadyReadinessBroken(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		// forcefully remove the app to check if ready state works
		s.App = nil

		res := test.PerformRequest(t, s, "GET", "/-/ready", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		require.Equal(t, "Not ready.", res.Body.String())
	})
}

func TestGetHealthy(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		assert.Equal(t, http.StatusOK, res.Result().StatusCode)
	})
}

func TestGetMetricsAfterConnect(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Wallet) {
		test.Connect(t, s.App)

		res := test.PerformRequest(t, s, "GET", "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		body := res.Body.String()
		assert.Contains(t, body, "cross_dapp_lifecycle_events_total")
		assert.Contains(t, body, "cross_dapp_session_connected 1")
	})
}
