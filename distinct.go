package joinhash

import (
	"context"

	"github.com/paveg/joinhash/internal/hashtable"
	"github.com/paveg/joinhash/internal/hll"
)

// Sketch is a HyperLogLog sketch of 2^Bits one-byte registers.
type Sketch struct {
	buffer
	Bits      uint32
	Registers []uint8
}

// Release returns the registers to the builder's allocator.
func (s *Sketch) Release() {
	s.free()
	s.Registers = nil
}

// Estimate returns the approximate number of distinct keys folded into s.
func (s *Sketch) Estimate() float64 {
	return hll.Estimate(s.Registers)
}

// Merge folds other into s. Both sketches must have the same size.
func (s *Sketch) Merge(other *Sketch) error {
	return hll.Merge(s.Registers, other.Registers)
}

// AllocSketch allocates an empty sketch sized by the configured register bits.
func (b *Builder) AllocSketch() (*Sketch, error) {
	bits := uint32(b.cfg.HLLRegisterBits) //nolint:gosec // validated range
	buf, err := b.allocate("AllocSketch", 1<<bits)
	if err != nil {
		return nil, err
	}
	return &Sketch{
		buffer:    buf,
		Bits:      bits,
		Registers: buf.buf,
	}, nil
}

// ApproximateDistinct folds every key tuple of src into s. When rowCounts is
// not nil, rowCounts[row] is incremented for every row that produced a key.
func (b *Builder) ApproximateDistinct(ctx context.Context, s *Sketch, src KeySource, rowCounts []int32) error {
	const op = "ApproximateDistinct"
	return b.run(op, src.Tuple.NumRows(), func(*hashtable.ErrorCell) error {
		h, err := newHandler[int64](op, src)
		if err != nil {
			return err
		}
		return hll.ApproximateDistinctTuples(ctx, b.env.Device(), s.Registers, rowCounts, s.Bits, h)
	})
}
