package hashtable

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/paveg/joinhash/internal/column"
	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/keys"
)

// EntryInfo sizes a perfect table. HashEntryCount is the key range
// max-min+1; with BucketNormalization b > 1, b consecutive keys share a slot.
type EntryInfo struct {
	HashEntryCount      int
	BucketNormalization int64
}

// NormalizedEntryCount returns the number of slots: ceil(HashEntryCount / b).
func (e EntryInfo) NormalizedEntryCount() int {
	if e.BucketNormalization <= 0 {
		panic(errors.AssertionFailedf("bucket normalization must be positive, got %d", e.BucketNormalization))
	}
	b := int(e.BucketNormalization)
	return (e.HashEntryCount + b - 1) / b
}

// IsEmpty reports whether the table has no slots.
func (e EntryInfo) IsEmpty() bool {
	return e.HashEntryCount == 0
}

// InitPerfect sets every slot to invalidSlotVal.
func InitPerfect(ctx context.Context, env *Env, slots []int32, invalidSlotVal int32) error {
	return fill(ctx, env, "init_perfect", slots, invalidSlotVal)
}

// perfectSource walks a single key column and maps each row to its slot.
type perfectSource struct {
	col         *column.Column
	info        *column.TypeInfo
	translation *keys.Translation
	slots       int
	slotOf      func(v int64) int
}

func newPerfectSource(
	op string,
	col *column.Column,
	info *column.TypeInfo,
	translation *keys.Translation,
	bucketNormalization int64,
	slots int,
) (*perfectSource, error) {
	if bucketNormalization <= 0 {
		return nil, jherrors.NewInvalidInputError(op,
			fmt.Sprintf("bucket normalization must be positive, got %d", bucketNormalization))
	}
	if translation != nil && (len(translation.Maps) != 1 || len(translation.MinInnerElems) != 1) {
		return nil, jherrors.NewInvalidInputError(op, "perfect tables translate exactly one key component")
	}
	s := &perfectSource{
		col:         col,
		info:        info,
		translation: translation,
		slots:       slots,
	}
	minVal := info.MinVal
	if bucketNormalization == 1 {
		s.slotOf = func(v int64) int { return int(v - minVal) }
	} else {
		s.slotOf = func(v int64) int {
			if v < minVal {
				return -1
			}
			return int((v - minVal) / bucketNormalization)
		}
	}
	return s, nil
}

// each calls fn for every row of the partition that has a slot. Null keys are
// skipped unless the column compares nulls bitwise, in which case they map to
// the slot of the translated null value.
func (s *perfectSource) each(start, step int, fn func(row, slot int)) {
	info := s.info
	for it := column.NewIterator(s.col, info, start, step); it.Valid(); it.Next() {
		elem := it.Element()
		if elem == info.NullVal {
			if !info.UsesBitwiseEq {
				continue
			}
			elem = info.TranslatedNullVal
		} else if s.translation != nil && s.translation.Maps[0] != nil {
			elem = s.translation.Translate(0, elem)
			if elem == int64(column.InvalidStrID) {
				continue
			}
		}
		slot := s.slotOf(elem)
		if slot < 0 || slot >= s.slots {
			panic(errors.AssertionFailedf("key %d outside the table range [%d, %d]", elem, info.MinVal, info.MaxVal))
		}
		fn(it.Index(), slot)
	}
}

// FillPerfect writes the row id of every row into the slot of its key. In
// one-to-one mode the first writer wins and any later row for the same slot
// sets CodeOneToOneViolation; in semi-join mode only the first write matters.
// translation may be nil.
func FillPerfect(
	ctx context.Context,
	env *Env,
	slots []int32,
	invalidSlotVal int32,
	forSemiJoin bool,
	col *column.Column,
	info *column.TypeInfo,
	translation *keys.Translation,
	bucketNormalization int64,
	errs *ErrorCell,
) error {
	const op = "FillPerfect"
	src, err := newPerfectSource(op, col, info, translation, bucketNormalization, len(slots))
	if err != nil {
		return err
	}

	var write func(row, slot int)
	if forSemiJoin {
		write = func(row, slot int) {
			atomic.CompareAndSwapInt32(&slots[slot], invalidSlotVal, int32(row)) //nolint:gosec // row ids fit the slot width
		}
	} else {
		write = func(row, slot int) {
			if !atomic.CompareAndSwapInt32(&slots[slot], invalidSlotVal, int32(row)) { //nolint:gosec // row ids fit the slot width
				errs.Store(jherrors.CodeOneToOneViolation)
			}
		}
	}

	return env.strided(ctx, "fill_perfect", col.NumElems, func(start, step int) {
		src.each(start, step, write)
	})
}
