package hashtable

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/paveg/joinhash/internal/column"
	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/keys"
)

// OneToManyLayout sizes a one-to-many index: EntryCount buckets and room for
// NumRows row ids.
type OneToManyLayout struct {
	EntryCount int
	NumRows    int
}

// Words returns the buffer size in int32 words.
func (l OneToManyLayout) Words() int {
	return 2*l.EntryCount + l.NumRows
}

// SizeBytes returns the buffer size in bytes.
func (l OneToManyLayout) SizeBytes() int {
	return 4 * l.Words()
}

// Index is a one-to-many index laid out as three consecutive regions of one
// buffer. After a build, the rows of bucket i are
// RowIDs[Pos[i] : Pos[i]+Count[i]] and Pos[i] is the invalid slot value for an
// empty bucket.
type Index struct {
	Pos    []int32
	Count  []int32
	RowIDs []int32
}

// NewIndex splits buf into the regions of an index with layout l.
func NewIndex(buf []int32, l OneToManyLayout) (Index, error) {
	if l.EntryCount < 0 || l.NumRows < 0 {
		return Index{}, jherrors.NewInvalidInputError("NewIndex", "layout sizes must not be negative")
	}
	if len(buf) < l.Words() {
		return Index{}, jherrors.NewInvalidInputError("NewIndex",
			fmt.Sprintf("buffer has %d words, layout needs %d", len(buf), l.Words()))
	}
	n := l.EntryCount
	return Index{
		Pos:    buf[:n:n],
		Count:  buf[n : 2*n : 2*n],
		RowIDs: buf[2*n : 2*n+l.NumRows : 2*n+l.NumRows],
	}, nil
}

// EntryCount returns the number of buckets.
func (ix Index) EntryCount() int {
	return len(ix.Pos)
}

// Matches returns the row ids stored for bucket.
func (ix Index) Matches(bucket int) []int32 {
	c := ix.Count[bucket]
	if c == 0 {
		return nil
	}
	p := ix.Pos[bucket]
	return ix.RowIDs[p : p+c]
}

// bucketKernel visits every row of a partition and passes its bucket to fn.
type bucketKernel func(start, step int, fn func(row, bucket int))

// buildOneToMany runs the counting-sort phases shared by every one-to-many
// build. rows is the number of work items of the input.
func buildOneToMany(ctx context.Context, env *Env, ix Index, invalidSlotVal int32, rows int, each bucketKernel) error {
	if invalidSlotVal == validPosFlag {
		return jherrors.NewInvalidInputError("BuildOneToMany",
			fmt.Sprintf("invalid slot value must differ from %d", validPosFlag))
	}
	n := ix.EntryCount()
	pos, count, rowIDs := ix.Pos, ix.Count, ix.RowIDs

	if err := fill(ctx, env, "reset_pos", pos, invalidSlotVal); err != nil {
		return err
	}
	if err := fill(ctx, env, "zero_count", count, 0); err != nil {
		return err
	}
	if err := env.strided(ctx, "count_matches", rows, func(start, step int) {
		each(start, step, func(_, bucket int) {
			atomic.AddInt32(&count[bucket], 1)
		})
	}); err != nil {
		return err
	}
	if err := env.parallelFor(ctx, "flag_nonempty", n, func(i int) {
		if count[i] != 0 {
			pos[i] = validPosFlag
		}
	}); err != nil {
		return err
	}
	if err := env.singleTask(ctx, "inclusive_scan", func() {
		for i := 1; i < n; i++ {
			count[i] += count[i-1]
		}
	}); err != nil {
		return err
	}
	if err := env.parallelFor(ctx, "set_pos", n, func(i int) {
		if pos[i] != validPosFlag {
			return
		}
		if i == 0 {
			pos[i] = 0
		} else {
			pos[i] = count[i-1]
		}
	}); err != nil {
		return err
	}
	if err := fill(ctx, env, "zero_count", count, 0); err != nil {
		return err
	}
	return env.strided(ctx, "scatter_rows", rows, func(start, step int) {
		each(start, step, func(row, bucket int) {
			off := pos[bucket] + atomic.AddInt32(&count[bucket], 1) - 1
			rowIDs[off] = int32(row) //nolint:gosec // row ids fit the slot width
		})
	})
}

// BuildPerfectOneToMany groups the rows of col by key, one bucket per key in
// [MinVal, MinVal+HashEntryCount).
func BuildPerfectOneToMany(
	ctx context.Context,
	env *Env,
	ix Index,
	info EntryInfo,
	invalidSlotVal int32,
	col *column.Column,
	typeInfo *column.TypeInfo,
) error {
	if ix.EntryCount() != info.HashEntryCount {
		return jherrors.NewInvalidInputError("BuildPerfectOneToMany",
			fmt.Sprintf("index has %d buckets, entry info has %d", ix.EntryCount(), info.HashEntryCount))
	}
	return buildPerfectOneToMany(ctx, env, ix, 1, invalidSlotVal, col, typeInfo)
}

// BuildPerfectOneToManyBucketized groups the rows of col by key bucket, where
// BucketNormalization consecutive keys share a bucket.
func BuildPerfectOneToManyBucketized(
	ctx context.Context,
	env *Env,
	ix Index,
	info EntryInfo,
	invalidSlotVal int32,
	col *column.Column,
	typeInfo *column.TypeInfo,
) error {
	const op = "BuildPerfectOneToManyBucketized"
	if info.BucketNormalization <= 0 {
		return jherrors.NewInvalidInputError(op, "bucket normalization must be positive")
	}
	if ix.EntryCount() != info.NormalizedEntryCount() {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("index has %d buckets, entry info has %d", ix.EntryCount(), info.NormalizedEntryCount()))
	}
	return buildPerfectOneToMany(ctx, env, ix, info.BucketNormalization, invalidSlotVal, col, typeInfo)
}

func buildPerfectOneToMany(
	ctx context.Context,
	env *Env,
	ix Index,
	bucketNormalization int64,
	invalidSlotVal int32,
	col *column.Column,
	typeInfo *column.TypeInfo,
) error {
	if len(ix.RowIDs) < col.NumElems {
		return jherrors.NewInvalidInputError("BuildPerfectOneToMany",
			fmt.Sprintf("index holds %d row ids, column has %d rows", len(ix.RowIDs), col.NumElems))
	}
	src, err := newPerfectSource("BuildPerfectOneToMany", col, typeInfo, nil, bucketNormalization, ix.EntryCount())
	if err != nil {
		return err
	}
	return buildOneToMany(ctx, env, ix, invalidSlotVal, col.NumElems, src.each)
}

// BuildBaselineOneToMany groups the rows produced by h by the dictionary entry
// holding their key. dict is a finished baseline table with layout l whose
// entries are the buckets of ix; every key of h must be present in dict.
func BuildBaselineOneToMany[T keys.Word](
	ctx context.Context,
	env *Env,
	ix Index,
	dict []T,
	l BaselineLayout,
	invalidSlotVal int32,
	h *keys.Handler[T],
) error {
	const op = "BuildBaselineOneToMany"
	if err := checkBaselineBuffer(op, dict, l); err != nil {
		return err
	}
	if ix.EntryCount() != l.EntryCount {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("index has %d buckets, dictionary has %d entries", ix.EntryCount(), l.EntryCount))
	}
	if h.KeyComponentCount() != l.KeyComponentCount {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("handler produces %d key words, dictionary expects %d", h.KeyComponentCount(), l.KeyComponentCount))
	}
	if len(ix.RowIDs) < h.NumRows() {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("index holds %d row ids, input has %d rows", len(ix.RowIDs), h.NumRows()))
	}

	each := func(start, step int, fn func(row, bucket int)) {
		var scratch [column.MaxKeyComponents]T
		sink := func(row int64, key []T) int {
			fn(int(row), LookupBaseline(dict, l, key))
			return jherrors.CodeOK
		}
		for it := h.Slice(start, step); it.Valid(); it.Next() {
			h.Handle(&it, scratch[:], sink)
		}
	}
	return buildOneToMany(ctx, env, ix, invalidSlotVal, h.NumRows(), each)
}
