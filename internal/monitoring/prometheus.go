package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	jherrors "github.com/paveg/joinhash/internal/errors"
)

const namespace = "joinhash"

// BuildMetrics exports build operations as Prometheus collectors.
type BuildMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	spins      prometheus.Counter
	spinIters  prometheus.Histogram
}

// NewBuildMetrics creates the build collectors and registers them with reg.
func NewBuildMetrics(reg prometheus.Registerer) (*BuildMetrics, error) {
	m := &BuildMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_operations_total",
			Help:      "Number of hash table build operations.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_failures_total",
			Help:      "Number of failed build operations by build code.",
		}, []string{"op", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of build operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		spins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "excessive_spins_total",
			Help:      "Inserts that waited longer than the spin warn threshold for a key to be published.",
		}),
		spinIters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "excessive_spin_iterations",
			Help:      "Spin iterations of inserts above the warn threshold.",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.failures, m.duration, m.spins, m.spinIters} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished operation. A *errors.BuildError is labelled
// with its build code; other errors are labelled "input".
func (m *BuildMetrics) Observe(op string, elapsed time.Duration, err error) {
	m.operations.WithLabelValues(op).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(op, failureCode(err)).Inc()
	}
}

// ObserveSpin records an insert that spun for iterations rounds.
func (m *BuildMetrics) ObserveSpin(iterations int) {
	m.spins.Inc()
	m.spinIters.Observe(float64(iterations))
}

func failureCode(err error) string {
	if code := buildCode(err); code != jherrors.CodeOK {
		return strconv.Itoa(code)
	}
	return "input"
}
