// Package parallel provides the data-parallel launcher used by the hash table
// builders.
//
// A Device plays the role of an accelerator queue: each launch runs one
// kernel over a range of work items on a fixed set of goroutines and returns
// only after every goroutine has finished. That return is the barrier between
// build phases; nothing else synchronizes work items.
//
// Key properties:
//   - Worker w of W handles items w, w+W, w+2W, ... (strided partitioning)
//   - Small launches below the parallel threshold run inline on the caller
//   - Cancellation is checked before a kernel starts, never inside one
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultParallelThreshold is the minimum number of work items that triggers
// a multi-goroutine launch.
const DefaultParallelThreshold = 1000

// Device launches kernels over goroutines.
type Device struct {
	numWorkers int
	threshold  int
}

// Option configures a Device.
type Option func(*Device)

// WithParallelThreshold sets the minimum work item count for a parallel launch.
func WithParallelThreshold(n int) Option {
	return func(d *Device) {
		d.threshold = n
	}
}

// NewDevice creates a device with numWorkers goroutines per launch.
// A non-positive count selects runtime.NumCPU().
func NewDevice(numWorkers int, opts ...Option) *Device {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	d := &Device{
		numWorkers: numWorkers,
		threshold:  DefaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Workers returns the number of goroutines used by a parallel launch.
func (d *Device) Workers() int {
	return d.numWorkers
}

// workersFor returns how many goroutines a launch over n items uses.
func (d *Device) workersFor(n int) int {
	if n < d.threshold {
		return 1
	}
	return min(d.numWorkers, n)
}

// ParallelFor runs kernel(i) for every i in [0, n) and waits for completion.
func (d *Device) ParallelFor(ctx context.Context, n int, kernel func(i int)) error {
	if n <= 0 {
		return ctx.Err()
	}
	return d.Strided(ctx, n, func(start, step int) {
		for i := start; i < n; i += step {
			kernel(i)
		}
	})
}

// Strided runs kernel(w, W) once per worker, where W is the number of workers
// chosen for n items, and waits for completion. The kernel is expected to
// visit items w, w+W, ... itself, which lets it keep a cursor across items.
func (d *Device) Strided(ctx context.Context, n int, kernel func(start, step int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	workers := d.workersFor(n)
	if workers <= 1 {
		kernel(0, 1)
		return nil
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			kernel(w, workers)
			return nil
		})
	}
	return g.Wait()
}

// SingleTask runs fn on its own goroutine and waits for it.
func (d *Device) SingleTask(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var g errgroup.Group
	g.Go(func() error {
		fn()
		return nil
	})
	return g.Wait()
}

// Fill sets every element of buf to v in parallel.
func Fill[T any](ctx context.Context, d *Device, buf []T, v T) error {
	return d.ParallelFor(ctx, len(buf), func(i int) {
		buf[i] = v
	})
}
