package joinhash

import (
	"context"

	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/hashtable"
)

// OneToManyIndex groups row ids by bucket. After a build, Matches(i) returns
// the rows of bucket i.
type OneToManyIndex struct {
	buffer
	hashtable.Index
}

// Release returns the index to the builder's allocator.
func (ix *OneToManyIndex) Release() {
	ix.free()
	ix.Index = hashtable.Index{}
}

// NonEmpty returns the number of buckets holding at least one row.
func (ix *OneToManyIndex) NonEmpty() int {
	n := 0
	for _, c := range ix.Count {
		if c > 0 {
			n++
		}
	}
	return n
}

// AllocOneToMany allocates an index with layout l.
func (b *Builder) AllocOneToMany(l OneToManyLayout) (*OneToManyIndex, error) {
	const op = "AllocOneToMany"
	if l.EntryCount < 0 || l.NumRows < 0 {
		return nil, jherrors.NewInvalidInputError(op, "layout sizes must not be negative")
	}
	buf, err := b.allocate(op, l.SizeBytes())
	if err != nil {
		return nil, err
	}
	ix, err := hashtable.NewIndex(hashtable.Words[int32](buf.buf), l)
	if err != nil {
		buf.free()
		return nil, err
	}
	return &OneToManyIndex{buffer: buf, Index: ix}, nil
}

// BuildPerfectOneToMany groups the rows of col by key. The index must have
// one bucket per normalized entry of info; with a bucket normalization above
// one, consecutive keys share a bucket.
func (b *Builder) BuildPerfectOneToMany(
	ctx context.Context,
	ix *OneToManyIndex,
	info EntryInfo,
	col *Column,
	typeInfo *TypeInfo,
) error {
	return b.run("BuildPerfectOneToMany", col.NumElems, func(*hashtable.ErrorCell) error {
		if info.BucketNormalization > 1 {
			return hashtable.BuildPerfectOneToManyBucketized(ctx, b.env, ix.Index, info, b.cfg.InvalidSlotValue, col, typeInfo)
		}
		return hashtable.BuildPerfectOneToMany(ctx, b.env, ix.Index, info, b.cfg.InvalidSlotValue, col, typeInfo)
	})
}

// BuildBaselineOneToMany groups the rows of src by the entry of dict that
// holds their key. dict must have been filled with every key of src.
func BuildBaselineOneToMany[T Word](
	ctx context.Context,
	b *Builder,
	ix *OneToManyIndex,
	dict *BaselineTable[T],
	src KeySource,
) error {
	const op = "BuildBaselineOneToMany"
	return b.run(op, src.Tuple.NumRows(), func(*hashtable.ErrorCell) error {
		h, err := newHandler[T](op, src)
		if err != nil {
			return err
		}
		return hashtable.BuildBaselineOneToMany(ctx, b.env, ix.Index, dict.Words, dict.Layout, b.cfg.InvalidSlotValue, h)
	})
}
