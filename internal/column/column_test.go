package column_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/joinhash/internal/column"
	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInt(t *testing.T) {
	tests := []struct {
		name  string
		width int
		bytes []byte
		want  int64
	}{
		{"int8 negative", 1, []byte{0xFF}, -1},
		{"int16 negative", 2, []byte{0xFE, 0xFF}, -2},
		{"int32 positive", 4, []byte{0x01, 0x02, 0x00, 0x00}, 0x0201},
		{"int64 min", 8, []byte{0, 0, 0, 0, 0, 0, 0, 0x80}, math.MinInt64},
		{"unsupported width", 3, []byte{1, 2, 3}, math.MinInt64 + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, column.DecodeInt(tt.bytes, tt.width, 0))
		})
	}
}

func TestDecodeUnsigned(t *testing.T) {
	assert.Equal(t, int64(255), column.DecodeUnsigned([]byte{0xFF}, 1, 0))
	assert.Equal(t, int64(65534), column.DecodeUnsigned([]byte{0xFE, 0xFF}, 2, 0))
	assert.Equal(t, int64(math.MaxUint32), column.DecodeUnsigned([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 4, 0))
	assert.Equal(t, int64(7), column.DecodeUnsigned([]byte{0, 7}, 1, 1))
}

func TestDecodeSmallDate(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, 2)
	null := int32(math.MinInt32)
	binary.LittleEndian.PutUint32(b[4:], uint32(null))

	assert.Equal(t, int64(2*column.SecondsPerDay), column.DecodeSmallDate(b, 4, column.NullInt, column.NullInt, 0))
	assert.Equal(t, column.NullInt, column.DecodeSmallDate(b, 4, column.NullInt, column.NullInt, 1))
}

func TestDecodeDouble(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(3.25))

	elem := column.DecodeDouble(b, 0)
	assert.InDelta(t, 3.25, column.DoubleValue(elem), 0)
}

func TestIteratorCrossesFragments(t *testing.T) {
	values := []int64{10, 11, 12, 13, 14, 15, 16}
	col, info := column.FromInt64s(values, 3)
	require.Len(t, col.Chunks, 3)

	var got []int64
	var idx []int
	for it := column.NewIterator(&col, &info, 0, 1); it.Valid(); it.Next() {
		got = append(got, it.Element())
		idx = append(idx, it.Index())
	}
	assert.Equal(t, values, got)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, idx)
}

func TestIteratorStrided(t *testing.T) {
	values := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	col, info := column.FromInt64s(values, 4)

	// Three work items partition the rows without overlap.
	seen := make(map[int64]int)
	for w := 0; w < 3; w++ {
		for it := column.NewIterator(&col, &info, w, 3); it.Valid(); it.Next() {
			assert.Equal(t, int64(it.Index()), it.Element())
			seen[it.Element()]++
		}
	}
	assert.Len(t, seen, len(values))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestIteratorStepLargerThanFragment(t *testing.T) {
	col, info := column.FromInt64s([]int64{0, 1, 2, 3, 4, 5, 6, 7}, 2)

	it := column.NewIterator(&col, &info, 5, 100)
	require.True(t, it.Valid())
	assert.Equal(t, int64(5), it.Element())
	it.Next()
	assert.False(t, it.Valid())
}

func TestIteratorEmptyColumn(t *testing.T) {
	col, info := column.FromInt64s(nil, 4)
	it := column.NewIterator(&col, &info, 0, 1)
	assert.False(t, it.Valid())

	var zero column.Iterator
	assert.False(t, zero.Valid())
}

func TestIteratorSkipsEmptyFragments(t *testing.T) {
	col, info := column.FromInt64s([]int64{1, 2}, 1)
	col.Chunks = append([]column.Chunk{{NumElems: 0}}, col.Chunks...)

	var got []int64
	for it := column.NewIterator(&col, &info, 0, 1); it.Valid(); it.Next() {
		got = append(got, it.Element())
	}
	assert.Equal(t, []int64{1, 2}, got)
}

func TestTupleIteratorHeterogeneousFragments(t *testing.T) {
	a, ai := column.FromInt64s([]int64{1, 2, 3, 4, 5}, 2)
	b, bi := column.FromInt32s([]int32{10, 20, 30, 40, 50}, 3)
	tuple, err := column.NewTuple([]column.Column{a, b}, []column.TypeInfo{ai, bi})
	require.NoError(t, err)

	rows, cols := tuple.Shape()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 2, cols)

	n := 0
	for it := tuple.Begin(); it.Valid(); it.Next() {
		its := it.Iterators()
		require.Len(t, its, 2)
		assert.Equal(t, its[0].Element()*10, its[1].Element())
		n++
	}
	assert.Equal(t, 5, n)
}

func TestTupleValidWhileAnyColumnValid(t *testing.T) {
	a, ai := column.FromInt64s([]int64{1, 2, 3}, 2)
	b, bi := column.FromInt64s([]int64{1}, 2)
	tuple, err := column.NewTuple([]column.Column{a, b}, []column.TypeInfo{ai, bi})
	require.NoError(t, err)

	it := tuple.Slice(2, 1)
	assert.True(t, it.Valid())
	assert.False(t, it.Iterators()[1].Valid())
}

func TestNewTupleValidation(t *testing.T) {
	col, info := column.FromInt64s([]int64{1}, 1)

	_, err := column.NewTuple([]column.Column{col}, nil)
	require.Error(t, err)

	cols := make([]column.Column, column.MaxKeyComponents+1)
	infos := make([]column.TypeInfo, column.MaxKeyComponents+1)
	for i := range cols {
		cols[i], infos[i] = col, info
	}
	_, err = column.NewTuple(cols, infos)
	require.Error(t, err)
}

func TestFromInt64sRange(t *testing.T) {
	_, info := column.FromInt64s([]int64{5, column.NullBigInt, -3, 9}, 2)
	assert.Equal(t, int64(-3), info.MinVal)
	assert.Equal(t, int64(9), info.MaxVal)
	assert.Equal(t, column.Signed, info.Type)
}

func TestFromArrowWithNulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewInt32Builder(mem)
	defer b.Release()
	b.AppendValues([]int32{4, 0, 7}, []bool{true, false, true})
	first := b.NewArray()
	defer first.Release()
	b.AppendValues([]int32{-2, 9}, nil)
	second := b.NewArray()
	defer second.Release()

	col, info, err := column.FromArrow(arrow.PrimitiveTypes.Int32, []arrow.Array{first, second})
	require.NoError(t, err)

	assert.Equal(t, 5, col.NumElems)
	assert.Len(t, col.Chunks, 2)
	assert.Equal(t, int64(-2), info.MinVal)
	assert.Equal(t, int64(9), info.MaxVal)

	var got []int64
	for it := column.NewIterator(&col, &info, 0, 1); it.Valid(); it.Next() {
		got = append(got, it.Element())
	}
	assert.Equal(t, []int64{4, column.NullInt, 7, -2, 9}, got)
}

func TestFromArrowDate32(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewDate32Builder(mem)
	defer b.Release()
	b.AppendValues([]arrow.Date32{1, 3}, nil)
	arr := b.NewArray()
	defer arr.Release()

	chunked := arrow.NewChunked(arrow.FixedWidthTypes.Date32, []arrow.Array{arr})
	defer chunked.Release()

	col, info, err := column.FromChunked(chunked)
	require.NoError(t, err)
	assert.Equal(t, column.SmallDate, info.Type)

	it := column.NewIterator(&col, &info, 1, 1)
	assert.Equal(t, int64(3*column.SecondsPerDay), it.Element())
	assert.Equal(t, int64(column.SecondsPerDay), info.MinVal)
}

func TestFromArrowUnsupportedType(t *testing.T) {
	_, _, err := column.FromArrow(arrow.BinaryTypes.String, nil)
	var be *jherrors.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "FromArrow", be.Op)
	assert.Contains(t, err.Error(), "unsupported type: utf8")
}

func TestFromArrowValueEqualToNullSentinel(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewUint8Builder(mem)
	defer b.Release()

	b.AppendValues([]uint8{1, 3}, nil)
	first := b.NewArray()
	defer first.Release()
	// A valid 255 cannot be told apart from a null uint8 key.
	b.AppendValues([]uint8{7, 255, 3}, nil)
	second := b.NewArray()
	defer second.Release()

	_, _, err := column.FromArrow(arrow.PrimitiveTypes.Uint8, []arrow.Array{first, second})
	var be *jherrors.BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "row 3")

	// The same slot marked null is accepted and skipped by the range.
	b.AppendValues([]uint8{1, 255, 3}, []bool{true, false, true})
	nulls := b.NewArray()
	defer nulls.Release()

	col, info, err := column.FromArrow(arrow.PrimitiveTypes.Uint8, []arrow.Array{nulls})
	require.NoError(t, err)
	assert.Equal(t, 3, col.NumElems)
	assert.Equal(t, int64(1), info.MinVal)
	assert.Equal(t, int64(3), info.MaxVal)
}

func TestNullSentinel(t *testing.T) {
	assert.Equal(t, column.NullTinyInt, column.NullSentinel(column.Signed, 1))
	assert.Equal(t, column.NullInt, column.NullSentinel(column.SmallDate, 4))
	assert.Equal(t, int64(255), column.NullSentinel(column.Unsigned, 1))
	assert.Equal(t, int64(-1), column.NullSentinel(column.Unsigned, 8))
	assert.Equal(t, column.NullDouble, column.NullSentinel(column.Double, 8))
}
