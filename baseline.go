package joinhash

import (
	"context"

	"github.com/paveg/joinhash/internal/hashtable"
)

// BaselineTable is an open-addressed table of composite keys with T words.
type BaselineTable[T Word] struct {
	buffer
	Layout BaselineLayout
	Words  []T
}

// Release returns the table to the builder's allocator.
func (t *BaselineTable[T]) Release() {
	t.free()
	t.Words = nil
}

// Lookup returns the entry holding key in a filled table.
func (t *BaselineTable[T]) Lookup(key []T) (int, bool) {
	return hashtable.ProbeBaseline(t.Words, t.Layout, key)
}

// Value returns the value word of entry. The layout must have a value slot.
func (t *BaselineTable[T]) Value(entry int) T {
	return t.Words[entry*t.Layout.EntrySizeWords()+t.Layout.KeyComponentCount]
}

// Occupied returns the number of entries holding a key.
func (t *BaselineTable[T]) Occupied() int {
	empty := hashtable.EmptyKey[T]()
	ew := t.Layout.EntrySizeWords()
	n := 0
	for i := 0; i < t.Layout.EntryCount; i++ {
		if t.Words[i*ew] != empty {
			n++
		}
	}
	return n
}

// AllocBaseline allocates an uninitialized baseline table with layout l.
func AllocBaseline[T Word](b *Builder, l BaselineLayout) (*BaselineTable[T], error) {
	const op = "AllocBaseline"
	if err := l.Validate(op); err != nil {
		return nil, err
	}
	buf, err := b.allocate(op, hashtable.BaselineSizeBytes[T](l))
	if err != nil {
		return nil, err
	}
	return &BaselineTable[T]{
		buffer: buf,
		Layout: l,
		Words:  hashtable.Words[T](buf.buf),
	}, nil
}

// ResetBaseline empties every entry of t.
func ResetBaseline[T Word](ctx context.Context, b *Builder, t *BaselineTable[T]) error {
	return b.run("ResetBaseline", t.Layout.EntryCount, func(*hashtable.ErrorCell) error {
		return hashtable.InitBaseline(ctx, b.env, t.Words, t.Layout, b.cfg.InvalidSlotValue)
	})
}

// FillBaselineOneToOne inserts the key of every row of src. With a value slot
// each entry records its row id and a key seen on two rows fails with
// ErrOneToOneViolation. A table without a free entry fails with ErrTableFull.
func FillBaselineOneToOne[T Word](ctx context.Context, b *Builder, t *BaselineTable[T], src KeySource) error {
	return fillBaseline(ctx, "FillBaselineOneToOne", b, t, false, src)
}

// FillBaselineSemiJoin inserts every distinct key of src, recording one row
// id per key when the layout has a value slot.
func FillBaselineSemiJoin[T Word](ctx context.Context, b *Builder, t *BaselineTable[T], src KeySource) error {
	return fillBaseline(ctx, "FillBaselineSemiJoin", b, t, true, src)
}

func fillBaseline[T Word](
	ctx context.Context,
	op string,
	b *Builder,
	t *BaselineTable[T],
	forSemiJoin bool,
	src KeySource,
) error {
	return b.run(op, src.Tuple.NumRows(), func(errs *hashtable.ErrorCell) error {
		h, err := newHandler[T](op, src)
		if err != nil {
			return err
		}
		return hashtable.FillBaseline(ctx, b.env, t.Words, t.Layout, b.cfg.InvalidSlotValue, forSemiJoin, h, errs)
	})
}
