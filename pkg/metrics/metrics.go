package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cgiscope"

// Metrics exposes Prometheus collectors that report gateway activity.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	variables     prometheus.Histogram
	inFlight      prometheus.Gauge
	postBodyTrunc prometheus.Counter
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh prometheus.NewRegistry(). Registration errors
// other than an identical collector already being present panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Requests handled, by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request, by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	variables := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "introspect",
			Name:      "listed_variables",
			Help:      "Number of environment variables listed on a rendered page.",
			Buckets:   []float64{0, 5, 10, 20, 40, 80, 160},
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		},
	)
	postBodyTrunc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "introspect",
			Name:      "post_body_truncated_total",
			Help:      "POST bodies cut at the echo limit.",
		},
	)

	collectors := []prometheus.Collector{requests, duration, variables, inFlight, postBodyTrunc}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch collector {
			case requests:
				requests = already.ExistingCollector.(*prometheus.CounterVec)
			case duration:
				duration = already.ExistingCollector.(*prometheus.HistogramVec)
			case variables:
				variables = already.ExistingCollector.(prometheus.Histogram)
			case inFlight:
				inFlight = already.ExistingCollector.(prometheus.Gauge)
			case postBodyTrunc:
				postBodyTrunc = already.ExistingCollector.(prometheus.Counter)
			}
		}
	}

	return &Metrics{
		requests:      requests,
		duration:      duration,
		variables:     variables,
		inFlight:      inFlight,
		postBodyTrunc: postBodyTrunc,
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRender records the size of the variable list of one rendered page.
func (m *Metrics) ObserveRender(variables int, truncated bool) {
	if m == nil {
		return
	}
	m.variables.Observe(float64(variables))
	if truncated {
		m.postBodyTrunc.Inc()
	}
}

// IncInFlight marks a request as started.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// DecInFlight marks a request as finished.
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
