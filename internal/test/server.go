package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/router"
	"github/chapool/cross-dapp/internal/config"
)

// WithTestServer runs closure against a fully initialized server backed by a
// fresh test App and Wallet.
func WithTestServer(t *testing.T, closure func(s *api.Server, w *Wallet)) {
	t.Helper()

	app, w := NewTestApp(t)

	cfg := config.DefaultServiceConfigFromEnv()
	cfg.Logger.PrettyPrintConsole = false

	s := api.NewServer(cfg, app)
	router.Init(s)

	closure(s, w)
}

// PerformRequest serves one request through s.Echo. body is JSON encoded
// unless it is nil.
func PerformRequest(t *testing.T, s *api.Server, method string, path string, body any, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)

	return res
}

// DecodeResponse decodes the JSON body of res into v.
func DecodeResponse(t *testing.T, res *httptest.ResponseRecorder, v any) {
	t.Helper()

	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}
