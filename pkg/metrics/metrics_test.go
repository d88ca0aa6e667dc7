package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("/cgi-bin/test", "GET", 200, 5*time.Millisecond)
	m.ObserveRequest("/cgi-bin/test", "GET", 200, time.Millisecond)
	m.ObserveRequest("/cgi-bin/test", "POST", 500, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/cgi-bin/test", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/cgi-bin/test", "POST", "500")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetrics_ObserveRender(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.ObserveRender(12, false)
	m.ObserveRender(3, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.postBodyTrunc))
	assert.Equal(t, 1, testutil.CollectAndCount(m.variables))
}

func TestMetrics_InFlight(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())
	m.IncInFlight()
	m.IncInFlight()
	m.DecInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
}

func TestMustNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.ObserveRender(1, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.postBodyTrunc))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/", "GET", 200, time.Second)
		m.ObserveRender(1, true)
		m.IncInFlight()
		m.DecInFlight()
	})
}
