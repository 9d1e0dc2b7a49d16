package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.ConnClosed()
		m.ConnRejected()
		m.ProtocolError()
		m.CommandDone("get", false, time.Millisecond)
		m.RegisterKeys(func() int { return 1 })
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.ConnRejected()
	m.ProtocolError()
	m.CommandDone("get", false, time.Microsecond)
	m.CommandDone("get", true, time.Microsecond)
	m.CommandDone("set", false, time.Microsecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ConnectionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsRejected))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProtocolErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("get", StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("get", StatusError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("set", StatusOK)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RegisterKeys(func() int { return 7 })
	m.ConnOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "minikv_keys 7"), body)
	assert.True(t, strings.Contains(body, "minikv_connections_active 1"), body)
}
