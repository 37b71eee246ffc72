package metrics

import (
	"math"
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

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestRecordSession(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordSession("authenticate", "unlocked", 42, 7*time.Second)
	m.RecordSession("authenticate", "rejected", 40, 7*time.Second)
	m.RecordSession("authenticate", "unlocked", 38, 6*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("authenticate", "unlocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("authenticate", "rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.sessionDuration))
}

func TestRecordMatch(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordMatch([3]float64{0.9, 0.5, math.NaN()}, 0)

	assert.Equal(t, 0.9, testutil.ToFloat64(m.correlation.WithLabelValues("x")))
	assert.True(t, math.IsNaN(testutil.ToFloat64(m.correlation.WithLabelValues("z"))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dtwDistance), "zero distance is not a DTW result")

	m.RecordMatch([3]float64{}, 120.5)
	assert.Equal(t, 120.5, testutil.ToFloat64(m.dtwDistance))
}

func TestCountersAndHandler(t *testing.T) {
	m := newTestMetrics(t)
	m.SetEnrolled(true)
	m.Request("mqtt", "authenticate")
	m.SensorError()
	m.PublishError()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrolled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("mqtt", "authenticate")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gesture_lock_sensor_errors_total 1"))
	assert.True(t, strings.Contains(body, "gesture_lock_reference_enrolled 1"))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
