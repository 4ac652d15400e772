// internal/metrics/metrics_test.go
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics_Counters(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.Frame("DDSU666H", "response")
	m.Frame("DDSU666H", "response")
	m.FramingError("DDSU666H", "crc")
	m.SetMQTTState(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("DDSU666H", "response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramingErrorsTotal.WithLabelValues("DDSU666H", "crc")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MQTTState))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "rtu_frames_total"))
}

func TestAppMetrics_NilSafe(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.Frame("x", "y")
		m.FramingError("x", "y")
		m.QueryRetry("x")
		m.Cycle("x", "data")
		m.SetMQTTState(1)
		m.Publish("ok")
		m.TransportLost()
	})
}
