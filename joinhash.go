// Package joinhash builds the hash tables of an equi-join in parallel.
// This package is the sole public API for the library.
//
// A Builder owns the worker device, the Arrow allocator that table buffers
// come from, and the logging and metrics hooks. Tables are allocated through
// the Builder, filled by one of its build operations and released by the
// caller once the join no longer probes them:
//
//	b, err := joinhash.NewBuilder()
//	if err != nil { ... }
//	defer b.Close()
//
//	t, err := joinhash.AllocBaseline[int64](b, joinhash.BaselineLayout{
//		EntryCount: 1024, KeyComponentCount: 2, WithValSlot: true,
//	})
//	if err != nil { ... }
//	defer t.Release()
//
//	if err := joinhash.ResetBaseline(ctx, b, t); err != nil { ... }
//	if err := joinhash.FillBaselineOneToOne(ctx, b, t, keys); err != nil { ... }
//
// Build failures reported by the workers come back as *BuildError values that
// match ErrOneToOneViolation or ErrTableFull under errors.Is.
package joinhash

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/paveg/joinhash/internal/column"
	"github.com/paveg/joinhash/internal/config"
	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/hashtable"
	"github.com/paveg/joinhash/internal/keys"
	"github.com/paveg/joinhash/internal/logging"
	jhmemory "github.com/paveg/joinhash/internal/memory"
	"github.com/paveg/joinhash/internal/monitoring"
	"github.com/paveg/joinhash/internal/parallel"
)

// Column is a fragmented key column.
type Column = column.Column

// TypeInfo carries the decoding and null policy of a key column.
type TypeInfo = column.TypeInfo

// Tuple is the ordered set of columns forming a composite key.
type Tuple = column.Tuple

// Translation rewrites inner dictionary ids into outer dictionary ids.
type Translation = keys.Translation

// EntryInfo sizes a perfect table.
type EntryInfo = hashtable.EntryInfo

// BaselineLayout describes the entries of a baseline table.
type BaselineLayout = hashtable.BaselineLayout

// OneToManyLayout sizes a one-to-many index.
type OneToManyLayout = hashtable.OneToManyLayout

// Word is the integer type of one baseline key component.
type Word = keys.Word

// Config is the build configuration.
type Config = config.Config

// BuildError is the error type returned by build operations.
type BuildError = jherrors.BuildError

// Errors reported by the parallel phase of a build.
var (
	ErrOneToOneViolation = jherrors.ErrOneToOneViolation
	ErrTableFull         = jherrors.ErrTableFull
)

// NewTuple groups columns of equal length into a key tuple.
func NewTuple(cols []Column, infos []TypeInfo) (Tuple, error) {
	return column.NewTuple(cols, infos)
}

// KeySource names the rows whose keys a build consumes.
type KeySource struct {
	Tuple Tuple
	// SkipNulls skips rows with a null component, except for columns
	// compared bitwise.
	SkipNulls bool
	// Translation is optional.
	Translation *Translation
}

func newHandler[T Word](op string, src KeySource) (*keys.Handler[T], error) {
	h, err := keys.NewHandler[T](src.Tuple, src.SkipNulls, src.Translation)
	if err != nil {
		return nil, jherrors.NewInvalidInputError(op, err.Error())
	}
	return h, nil
}

// Builder runs table builds on a shared worker device.
type Builder struct {
	cfg       Config
	mem       memory.Allocator
	budget    *jhmemory.Budget
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *monitoring.BuildMetrics
	collector *monitoring.MetricsCollector
	env       *hashtable.Env
}

type builderOptions struct {
	cfg      *Config
	mem      memory.Allocator
	logger   *zap.Logger
	registry *prometheus.Registry
}

// Option configures a Builder.
type Option func(*builderOptions)

// WithConfig uses cfg instead of the global configuration.
func WithConfig(cfg Config) Option {
	return func(o *builderOptions) {
		o.cfg = &cfg
	}
}

// WithAllocator allocates table buffers from mem.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *builderOptions) {
		o.mem = mem
	}
}

// WithLogger logs through l instead of the process-wide logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *builderOptions) {
		o.logger = l
	}
}

// WithRegistry registers the build collectors with reg.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *builderOptions) {
		o.registry = reg
	}
}

// NewBuilder creates a Builder. Without options it uses the global
// configuration, the default Go allocator, the process-wide logger and a
// private Prometheus registry.
func NewBuilder(opts ...Option) (*Builder, error) {
	var o builderOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := config.GetGlobalConfig()
	if o.cfg != nil {
		cfg = o.cfg.WithDefaults()
	}
	cfg, warnings, err := config.NewConfigValidator().Validate(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.Named("joinhash")
	}
	for _, w := range warnings {
		logger.Debug("configuration adjusted", zap.String("detail", w))
	}

	mem := o.mem
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	budget := jhmemory.NewBudget(
		jhmemory.WithLimit(cfg.MemoryLimit),
		jhmemory.WithPressureThreshold(cfg.MemoryLimit/10*8),
	)
	budget.SetPressureCallback(func(inUse int64) {
		logger.Warn("table memory pressure",
			zap.Int64("in_use", inUse),
			zap.Int64("limit", cfg.MemoryLimit),
		)
	})

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := monitoring.NewBuildMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("registering build metrics: %w", err)
	}

	dev := parallel.NewDevice(cfg.WorkerCount, parallel.WithParallelThreshold(cfg.ParallelThreshold))
	env := hashtable.NewEnv(dev,
		hashtable.WithLogger(logger),
		hashtable.WithSpinObserver(metrics, cfg.SpinWarnThreshold),
	)

	return &Builder{
		cfg:       cfg,
		mem:       mem,
		budget:    budget,
		logger:    logger,
		registry:  registry,
		metrics:   metrics,
		collector: monitoring.NewMetricsCollector(cfg.MetricsCollection),
		env:       env,
	}, nil
}

// Config returns the validated configuration of the builder.
func (b *Builder) Config() Config {
	return b.cfg
}

// Workers returns the number of goroutines per kernel launch.
func (b *Builder) Workers() int {
	return b.env.Device().Workers()
}

// Gatherer returns the registry holding the build collectors.
func (b *Builder) Gatherer() prometheus.Gatherer {
	return b.registry
}

// Collector returns the per-operation metrics collector.
func (b *Builder) Collector() *monitoring.MetricsCollector {
	return b.collector
}

// MemoryInUse returns the bytes held by unreleased tables.
func (b *Builder) MemoryInUse() int64 {
	return b.budget.InUse()
}

// MemoryPeak returns the largest number of bytes held by tables at once.
func (b *Builder) MemoryPeak() int64 {
	return b.budget.Peak()
}

// Close flushes the builder's logger. Tables allocated by the builder stay
// valid and must still be released.
func (b *Builder) Close() {
	_ = b.logger.Sync()
}

// run executes one build operation and converts its error cell.
func (b *Builder) run(op string, rows int, fn func(errs *hashtable.ErrorCell) error) error {
	var errs hashtable.ErrorCell
	start := time.Now()
	err := b.collector.RecordOperation(op, int64(rows), func() error {
		if err := fn(&errs); err != nil {
			return err
		}
		return errs.Err(op)
	})
	b.metrics.Observe(op, time.Since(start), err)
	if err != nil {
		b.logger.Warn("build failed",
			zap.String("op", op),
			zap.Int("rows", rows),
			zap.Error(err),
		)
	}
	return err
}

// allocate reserves size bytes against the budget and returns a zeroed
// buffer, nil for size 0.
func (b *Builder) allocate(op string, size int) (buffer, error) {
	if size == 0 {
		return buffer{}, nil
	}
	if err := b.budget.Reserve(int64(size)); err != nil {
		return buffer{}, &jherrors.BuildError{Op: op, Message: err.Error(), Cause: err}
	}
	buf := b.mem.Allocate(size)
	clear(buf)
	return buffer{mem: b.mem, budget: b.budget, buf: buf}, nil
}

// buffer is a table region owned by an allocator.
type buffer struct {
	mem    memory.Allocator
	budget *jhmemory.Budget
	buf    []byte
}

// free returns the buffer to its allocator. It is safe to call twice.
func (t *buffer) free() {
	if t.buf != nil {
		t.budget.Release(int64(len(t.buf)))
		t.mem.Free(t.buf)
		t.buf = nil
	}
}
