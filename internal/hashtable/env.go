// Package hashtable builds the join hash tables: the open-addressed baseline
// table, the direct-addressed perfect table and the one-to-many index that
// groups row ids by bucket.
//
// Every builder is a fixed sequence of kernels launched on a parallel.Device.
// Inside a kernel, work items coordinate only through atomic operations on the
// table words; the end of a launch is the only barrier. Builders never return
// partially failed state silently: conflicts are recorded in an ErrorCell and
// the table contents are unspecified once a non-zero code is set.
package hashtable

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paveg/joinhash/internal/parallel"
)

// DefaultSpinWarnThreshold is the number of spin iterations after which a
// wait on a half-published key is reported.
const DefaultSpinWarnThreshold = 1 << 16

// SpinObserver is notified when an insert spent more than the warn threshold
// waiting for another worker to publish a key.
type SpinObserver interface {
	ObserveSpin(iterations int)
}

// Env bundles the device and the observability hooks used by the builders.
type Env struct {
	dev      *parallel.Device
	logger   *zap.Logger
	spin     SpinObserver
	spinWarn int
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger used for kernel launches.
func WithLogger(l *zap.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSpinObserver reports spins longer than threshold iterations to o.
func WithSpinObserver(o SpinObserver, threshold int) Option {
	return func(e *Env) {
		e.spin = o
		if threshold > 0 {
			e.spinWarn = threshold
		}
	}
}

// NewEnv creates a build environment on dev.
func NewEnv(dev *parallel.Device, opts ...Option) *Env {
	e := &Env{
		dev:      dev,
		logger:   zap.NewNop(),
		spinWarn: DefaultSpinWarnThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Device returns the launcher.
func (e *Env) Device() *parallel.Device {
	return e.dev
}

// Logger returns the environment logger.
func (e *Env) Logger() *zap.Logger {
	return e.logger
}

func (e *Env) parallelFor(ctx context.Context, kernel string, n int, fn func(i int)) error {
	start := time.Now()
	err := e.dev.ParallelFor(ctx, n, fn)
	e.traceLaunch(kernel, n, start, err)
	return err
}

// fill sets every element of buf to v in one kernel.
func fill[T any](ctx context.Context, env *Env, kernel string, buf []T, v T) error {
	start := time.Now()
	err := parallel.Fill(ctx, env.dev, buf, v)
	env.traceLaunch(kernel, len(buf), start, err)
	return err
}

func (e *Env) strided(ctx context.Context, kernel string, n int, fn func(start, step int)) error {
	start := time.Now()
	err := e.dev.Strided(ctx, n, fn)
	e.traceLaunch(kernel, n, start, err)
	return err
}

func (e *Env) singleTask(ctx context.Context, kernel string, fn func()) error {
	start := time.Now()
	err := e.dev.SingleTask(ctx, fn)
	e.traceLaunch(kernel, 1, start, err)
	return err
}

func (e *Env) traceLaunch(kernel string, n int, start time.Time, err error) {
	if ce := e.logger.Check(zap.DebugLevel, "kernel finished"); ce != nil {
		ce.Write(
			zap.String("kernel", kernel),
			zap.Int("items", n),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
}

// observeSpin reports a long wait. iterations is the spin count of one wait.
func (e *Env) observeSpin(iterations int) {
	if e.spin != nil && iterations >= e.spinWarn {
		e.spin.ObserveSpin(iterations)
	}
}
