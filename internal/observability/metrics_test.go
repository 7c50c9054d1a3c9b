package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvent()
		m.RecordResubscribe()
		m.RecordDecision("ACCEPTED", "cost", 1)
		m.RecordStage("onchain", time.Second)
		m.RecordOffChainAttempt("goplus", nil)
		m.RecordSimulation(-1.5, false)
	})
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "")

	m.RecordEvent()
	m.RecordEvent()
	m.RecordDecision("REJECTED", "liquidity", 19_000_000)
	m.RecordOffChainAttempt("goplus", errors.New("boom"))
	m.RecordOffChainAttempt("goplus", nil)
	m.RecordSimulation(3, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("REJECTED", "liquidity")))
	assert.Equal(t, 19_000_000.0, testutil.ToFloat64(m.LastEvaluatedBlock))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OffChainAttempts.WithLabelValues("goplus", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OffChainAttempts.WithLabelValues("goplus", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuspiciousSimulations))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test_ns")
	m.RecordEvent()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_ns_intake_events_received_total 1"))
}
