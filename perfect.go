package joinhash

import (
	"context"
	"fmt"

	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/hashtable"
)

// PerfectTable is a direct-addressed table with one row id slot per key, or
// per key bucket when the entry info normalizes keys.
type PerfectTable struct {
	buffer
	Info  EntryInfo
	Slots []int32
}

// Release returns the slots to the builder's allocator.
func (t *PerfectTable) Release() {
	t.free()
	t.Slots = nil
}

// Occupied returns the number of slots holding a row id.
func (t *PerfectTable) Occupied(invalidSlotVal int32) int {
	n := 0
	for _, s := range t.Slots {
		if s != invalidSlotVal {
			n++
		}
	}
	return n
}

// AllocPerfect allocates an uninitialized perfect table for info.
func (b *Builder) AllocPerfect(info EntryInfo) (*PerfectTable, error) {
	const op = "AllocPerfect"
	if info.HashEntryCount < 0 {
		return nil, jherrors.NewInvalidInputError(op,
			fmt.Sprintf("entry count must not be negative, got %d", info.HashEntryCount))
	}
	if info.BucketNormalization <= 0 {
		return nil, jherrors.NewInvalidInputError(op,
			fmt.Sprintf("bucket normalization must be positive, got %d", info.BucketNormalization))
	}
	buf, err := b.allocate(op, 4*info.NormalizedEntryCount())
	if err != nil {
		return nil, err
	}
	return &PerfectTable{
		buffer: buf,
		Info:   info,
		Slots:  hashtable.Words[int32](buf.buf),
	}, nil
}

// ResetPerfect marks every slot of t empty.
func (b *Builder) ResetPerfect(ctx context.Context, t *PerfectTable) error {
	return b.run("ResetPerfect", len(t.Slots), func(*hashtable.ErrorCell) error {
		return hashtable.InitPerfect(ctx, b.env, t.Slots, b.cfg.InvalidSlotValue)
	})
}

// FillPerfectOneToOne stores the row id of every row of col in the slot of its
// key. A key seen on two rows fails with ErrOneToOneViolation. translation
// may be nil.
func (b *Builder) FillPerfectOneToOne(
	ctx context.Context,
	t *PerfectTable,
	col *Column,
	info *TypeInfo,
	translation *Translation,
) error {
	return b.fillPerfect(ctx, "FillPerfectOneToOne", t, false, col, info, translation)
}

// FillPerfectSemiJoin stores one row id per distinct key of col.
func (b *Builder) FillPerfectSemiJoin(
	ctx context.Context,
	t *PerfectTable,
	col *Column,
	info *TypeInfo,
	translation *Translation,
) error {
	return b.fillPerfect(ctx, "FillPerfectSemiJoin", t, true, col, info, translation)
}

func (b *Builder) fillPerfect(
	ctx context.Context,
	op string,
	t *PerfectTable,
	forSemiJoin bool,
	col *Column,
	info *TypeInfo,
	translation *Translation,
) error {
	return b.run(op, col.NumElems, func(errs *hashtable.ErrorCell) error {
		return hashtable.FillPerfect(ctx, b.env, t.Slots, b.cfg.InvalidSlotValue, forSemiJoin,
			col, info, translation, t.Info.BucketNormalization, errs)
	})
}
