package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github/chapool/cross-dapp/internal/metrics"
)

func TestObserve(t *testing.T) {
	m := metrics.New()

	m.ObserveLifecycleEvent("account_connected", true, true)
	m.ObserveSubmission("legacy", nil)
	m.ObserveSubmission("legacy", errors.New("boom"))
	m.ObservePollOutcome("confirmed")
	m.ObservePollRetry()

	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionConnected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifecycleEvents.WithLabelValues("account_connected", "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Submissions.WithLabelValues("legacy", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Submissions.WithLabelValues("legacy", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PollOutcomes.WithLabelValues("confirmed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PollQueryRetries), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveLifecycleEvent("chain_changed", false, false)
		m.ObserveSubmission("legacy", nil)
		m.ObservePollOutcome("timed_out")
		m.ObservePollRetry()
		m.ObserveSignature("personal_sign", nil)
	})
}
