package testutil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/joinhash/internal/column"
	"github.com/paveg/joinhash/internal/hashtable"
	"github.com/paveg/joinhash/internal/keys"
	"github.com/paveg/joinhash/internal/parallel"
	"github.com/paveg/joinhash/internal/testutil"
)

func TestSetupMemoryTest(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	buf := mem.Allocator.Allocate(64)
	assert.Len(t, buf, 64)
	mem.Allocator.Free(buf)
}

func TestInt64Tuple(t *testing.T) {
	tuple := testutil.Int64Tuple(t, 2, []int64{1, 2, 3}, []int64{4, 5, 6})
	rows, cols := tuple.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Len(t, tuple.Columns[0].Chunks, 2)
	assert.Equal(t, int64(4), tuple.Infos[1].MinVal)
}

func TestInt32Tuple(t *testing.T) {
	tuple := testutil.Int32Tuple(t, 0, []int32{7, -1})
	assert.Equal(t, 4, tuple.Infos[0].ElemSize)
	assert.Len(t, tuple.Columns[0].Chunks, 1)
}

func TestNewHandler(t *testing.T) {
	tuple := testutil.Int64Tuple(t, 0, []int64{1, column.NullBigInt, 3})

	collect := func(h *keys.Handler[int64]) []int64 {
		var got []int64
		scratch := make([]int64, 1)
		for it := h.Slice(0, 1); it.Valid(); it.Next() {
			h.Handle(&it, scratch, func(_ int64, key []int64) int {
				got = append(got, key[0])
				return 0
			})
		}
		return got
	}

	assert.Equal(t, []int64{1, 3}, collect(testutil.NewHandler[int64](t, tuple)))
	assert.Equal(t, []int64{1, column.NullBigInt, 3}, collect(testutil.NewHandler[int64](t, tuple, testutil.WithNullsKept())))
}

func TestGenerateKeys(t *testing.T) {
	keys := testutil.GenerateKeys(100, 10, 3, 1)
	assert.Len(t, keys, 100)
	assert.Equal(t, keys, testutil.GenerateKeys(100, 10, 3, 1))

	counts := map[int64]int{}
	for _, k := range keys {
		counts[k]++
	}
	assert.Len(t, counts, 10)
	assert.Equal(t, 10, counts[27])
}

func TestAssertIndexConsistent(t *testing.T) {
	values := []int64{3, 1, 3, 0}
	col, info := column.FromInt64s(values, 0)
	l := hashtable.OneToManyLayout{EntryCount: 4, NumRows: len(values)}
	ix, err := hashtable.NewIndex(make([]int32, l.Words()), l)
	require.NoError(t, err)

	env := hashtable.NewEnv(parallel.NewDevice(2, parallel.WithParallelThreshold(1)))
	require.NoError(t, hashtable.BuildPerfectOneToMany(context.Background(), env, ix,
		hashtable.EntryInfo{HashEntryCount: 4, BucketNormalization: 1}, -1, &col, &info))

	testutil.AssertIndexConsistent(t, ix, len(values), -1)
	assert.Equal(t, []int32{0, 2}, testutil.SortedMatches(ix, 3))
}
