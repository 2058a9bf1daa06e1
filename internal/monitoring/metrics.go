// Package monitoring records hash table builds for the monitoring server and
// exports them to Prometheus.
package monitoring

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	jherrors "github.com/paveg/joinhash/internal/errors"
)

// DefaultHistory is the number of recent builds a collector keeps.
const DefaultHistory = 256

// BuildRecord describes one finished build operation.
type BuildRecord struct {
	Op       string        `json:"op"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
	// Code is the build code of a failed build, CodeOK otherwise.
	Code  int    `json:"code"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the build returned an error.
func (r BuildRecord) Failed() bool {
	return r.Error != ""
}

// OpStats aggregates the builds of one operation.
type OpStats struct {
	Count    int           `json:"count"`
	Failures int           `json:"failures"`
	Rows     int64         `json:"rows"`
	Total    time.Duration `json:"total"`
	Max      time.Duration `json:"max"`
}

// RowsPerSecond returns the input throughput over all builds of the
// operation.
func (s OpStats) RowsPerSecond() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Rows) / s.Total.Seconds()
}

func (s *OpStats) add(r BuildRecord) {
	s.Count++
	s.Rows += r.Rows
	s.Total += r.Duration
	s.Max = max(s.Max, r.Duration)
	if r.Failed() {
		s.Failures++
	}
}

// Summary is the aggregate of every build a collector recorded.
type Summary struct {
	Builds   int                `json:"builds"`
	Failures int                `json:"failures"`
	Rows     int64              `json:"rows"`
	ByOp     map[string]OpStats `json:"by_op"`
}

// MetricsCollector keeps per-operation totals and a bounded history of
// recent builds. A disabled collector only runs the operations.
type MetricsCollector struct {
	enabled atomic.Bool

	mu     sync.Mutex
	ops    map[string]*OpStats
	recent []BuildRecord
	next   int
	full   bool
}

// CollectorOption configures a MetricsCollector.
type CollectorOption func(*MetricsCollector)

// WithHistory keeps the last n builds. n below one keeps one.
func WithHistory(n int) CollectorOption {
	return func(mc *MetricsCollector) {
		mc.recent = make([]BuildRecord, max(n, 1))
	}
}

// NewMetricsCollector creates a collector.
func NewMetricsCollector(enabled bool, opts ...CollectorOption) *MetricsCollector {
	mc := &MetricsCollector{
		ops:    make(map[string]*OpStats),
		recent: make([]BuildRecord, DefaultHistory),
	}
	mc.enabled.Store(enabled)
	for _, opt := range opts {
		opt(mc)
	}
	return mc
}

// IsEnabled reports whether builds are recorded.
func (mc *MetricsCollector) IsEnabled() bool {
	return mc.enabled.Load()
}

// SetEnabled turns recording on or off. Recorded builds are kept.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.enabled.Store(enabled)
}

// RecordOperation runs fn and records it as a build of op over rows input
// rows. The error of fn is returned unchanged.
func (mc *MetricsCollector) RecordOperation(op string, rows int64, fn func() error) error {
	if !mc.IsEnabled() {
		return fn()
	}

	start := time.Now()
	err := fn()
	r := BuildRecord{
		Op:       op,
		Rows:     rows,
		Duration: time.Since(start),
	}
	if err != nil {
		r.Code = buildCode(err)
		r.Error = err.Error()
	}
	mc.add(r)
	return err
}

func (mc *MetricsCollector) add(r BuildRecord) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	s, ok := mc.ops[r.Op]
	if !ok {
		s = &OpStats{}
		mc.ops[r.Op] = s
	}
	s.add(r)

	mc.recent[mc.next] = r
	mc.next++
	if mc.next == len(mc.recent) {
		mc.next = 0
		mc.full = true
	}
}

// Recent returns the retained builds, oldest first.
func (mc *MetricsCollector) Recent() []BuildRecord {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.full {
		return append([]BuildRecord(nil), mc.recent[:mc.next]...)
	}
	out := make([]BuildRecord, 0, len(mc.recent))
	out = append(out, mc.recent[mc.next:]...)
	return append(out, mc.recent[:mc.next]...)
}

// Reset drops all recorded builds.
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	clear(mc.ops)
	clear(mc.recent)
	mc.next = 0
	mc.full = false
}

// GetSummary aggregates every build recorded since the last Reset,
// including builds no longer in the history.
func (mc *MetricsCollector) GetSummary() Summary {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	summary := Summary{ByOp: make(map[string]OpStats, len(mc.ops))}
	for op, s := range mc.ops {
		summary.ByOp[op] = *s
		summary.Builds += s.Count
		summary.Failures += s.Failures
		summary.Rows += s.Rows
	}
	return summary
}

// buildCode returns the build code carried by err, CodeOK for errors raised
// outside the parallel phase.
func buildCode(err error) int {
	var be *jherrors.BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return jherrors.CodeOK
}
