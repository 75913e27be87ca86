package util_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github/chapool/cross-dapp/internal/util"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("DAPP_TEST_STRING", "value")
	t.Setenv("DAPP_TEST_INT", "42")
	t.Setenv("DAPP_TEST_BOOL", "true")
	t.Setenv("DAPP_TEST_DURATION", "1500ms")
	t.Setenv("DAPP_TEST_ARR", " a, ,b ,c")
	t.Setenv("DAPP_TEST_BAD_INT", "forty-two")

	assert.Equal(t, "value", util.GetEnv("DAPP_TEST_STRING", "default"))
	assert.Equal(t, "default", util.GetEnv("DAPP_TEST_UNSET", "default"))
	assert.Equal(t, 42, util.GetEnvAsInt("DAPP_TEST_INT", 1))
	assert.Equal(t, 1, util.GetEnvAsInt("DAPP_TEST_BAD_INT", 1))
	assert.True(t, util.GetEnvAsBool("DAPP_TEST_BOOL", false))
	assert.Equal(t, 1500*time.Millisecond, util.GetEnvAsDuration("DAPP_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, util.GetEnvAsDuration("DAPP_TEST_UNSET", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, util.GetEnvAsStringArr("DAPP_TEST_ARR", nil))
	assert.Equal(t, []string{"x"}, util.GetEnvAsStringArr("DAPP_TEST_UNSET", []string{"x"}))
}
