package probe

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersProbes(t *testing.T) {
	cmd := New()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"liveness", "readiness"}, names)

	readiness, _, err := cmd.Find([]string{"readiness"})
	require.NoError(t, err)
	assert.NotNil(t, readiness.Flags().Lookup(verboseFlag))
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", baseURL(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000", baseURL("127.0.0.1:9000"))
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/-/ready" {
			w.WriteHeader(521)
			_, _ = w.Write([]byte("Not ready."))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, probe(t.Context(), io.Discard, srv.URL+"/-/healthy", false))

	var out bytes.Buffer
	assert.Error(t, probe(t.Context(), &out, srv.URL+"/-/ready", true))
	assert.Equal(t, "521 Not ready.\n", out.String())
}
