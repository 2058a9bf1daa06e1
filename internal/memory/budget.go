// Package memory accounts for the table buffers handed out by a builder.
//
// A Budget tracks the bytes reserved by live tables and the peak over its
// lifetime. With a limit, Reserve refuses reservations that would exceed it
// instead of letting a build allocate past it. A pressure callback fires
// each time usage crosses the pressure threshold from below.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrLimitExceeded is returned by Reserve when the limit would be exceeded.
var ErrLimitExceeded = errors.New("memory limit exceeded")

// Budget tracks reserved table memory.
type Budget struct {
	limit     int64
	threshold int64
	inUse     atomic.Int64
	peak      atomic.Int64

	mu               sync.RWMutex
	pressureCallback func(inUse int64)
}

// Option configures a Budget.
type Option func(*Budget)

// WithLimit caps the bytes that can be reserved at once. Zero is unlimited.
func WithLimit(bytes int64) Option {
	return func(b *Budget) {
		b.limit = bytes
	}
}

// WithPressureThreshold sets the usage at which the pressure callback fires.
func WithPressureThreshold(bytes int64) Option {
	return func(b *Budget) {
		b.threshold = bytes
	}
}

// NewBudget creates a budget.
func NewBudget(opts ...Option) *Budget {
	b := &Budget{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetPressureCallback sets the callback run when usage crosses the threshold.
func (b *Budget) SetPressureCallback(callback func(inUse int64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressureCallback = callback
}

// Reserve records an allocation of bytes.
func (b *Budget) Reserve(bytes int64) error {
	for {
		cur := b.inUse.Load()
		next := cur + bytes
		if b.limit > 0 && next > b.limit {
			return fmt.Errorf("%w: reserving %d bytes with %d of %d in use", ErrLimitExceeded, bytes, cur, b.limit)
		}
		if !b.inUse.CompareAndSwap(cur, next) {
			continue
		}
		b.raisePeak(next)
		if b.threshold > 0 && cur < b.threshold && next >= b.threshold {
			b.triggerPressure(next)
		}
		return nil
	}
}

// Release records a deallocation of bytes.
func (b *Budget) Release(bytes int64) {
	b.inUse.Add(-bytes)
}

// InUse returns the bytes currently reserved.
func (b *Budget) InUse() int64 {
	return b.inUse.Load()
}

// Peak returns the largest reservation total seen.
func (b *Budget) Peak() int64 {
	return b.peak.Load()
}

// Limit returns the configured limit, zero when unlimited.
func (b *Budget) Limit() int64 {
	return b.limit
}

func (b *Budget) raisePeak(v int64) {
	for {
		p := b.peak.Load()
		if v <= p || b.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

func (b *Budget) triggerPressure(inUse int64) {
	b.mu.RLock()
	callback := b.pressureCallback
	b.mu.RUnlock()

	if callback != nil {
		callback(inUse)
	}
}
