package keys_test

import (
	"testing"

	"github.com/paveg/joinhash/internal/column"
	"github.com/paveg/joinhash/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	row int64
	key []int64
}

func collect(t *testing.T, h *keys.Handler[int64]) []captured {
	t.Helper()
	var out []captured
	scratch := make([]int64, column.MaxKeyComponents)
	sink := func(row int64, key []int64) int {
		out = append(out, captured{row: row, key: append([]int64(nil), key...)})
		return 0
	}
	for it := h.Slice(0, 1); it.Valid(); it.Next() {
		require.Equal(t, 0, h.Handle(&it, scratch, sink))
	}
	return out
}

func tupleOf(t *testing.T, cols ...[]int64) column.Tuple {
	t.Helper()
	cs := make([]column.Column, len(cols))
	infos := make([]column.TypeInfo, len(cols))
	for i, c := range cols {
		cs[i], infos[i] = column.FromInt64s(c, 2)
	}
	tuple, err := column.NewTuple(cs, infos)
	require.NoError(t, err)
	return tuple
}

func TestHandlerAssemblesCompositeKeys(t *testing.T) {
	h, err := keys.NewHandler[int64](tupleOf(t, []int64{1, 2, 3}, []int64{10, 20, 30}), true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, h.KeyComponentCount())
	assert.Equal(t, 3, h.NumRows())

	got := collect(t, h)
	require.Len(t, got, 3)
	assert.Equal(t, captured{row: 1, key: []int64{2, 20}}, got[1])
}

func TestHandlerSkipsNulls(t *testing.T) {
	null := column.NullBigInt
	tuple := tupleOf(t, []int64{1, null, 3}, []int64{10, 20, null})

	skipping, err := keys.NewHandler[int64](tuple, true, nil)
	require.NoError(t, err)
	got := collect(t, skipping)
	require.Len(t, got, 1)
	assert.Equal(t, int64(0), got[0].row)

	keeping, err := keys.NewHandler[int64](tuple, false, nil)
	require.NoError(t, err)
	assert.Len(t, collect(t, keeping), 3)
}

func TestHandlerBitwiseEqualityKeepsNulls(t *testing.T) {
	null := column.NullBigInt
	tuple := tupleOf(t, []int64{null, 2})
	tuple.Infos[0].UsesBitwiseEq = true

	h, err := keys.NewHandler[int64](tuple, true, nil)
	require.NoError(t, err)
	got := collect(t, h)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{null}, got[0].key)
}

func TestHandlerTranslation(t *testing.T) {
	tuple := tupleOf(t, []int64{5, 6, 7, 42}, []int64{1, 1, 1, 1})
	tr := &keys.Translation{
		Maps:          [][]int32{{100, column.InvalidStrID, 102}, nil},
		MinInnerElems: []int32{5, 0},
	}

	h, err := keys.NewHandler[int64](tuple, true, tr)
	require.NoError(t, err)

	got := collect(t, h)
	require.Len(t, got, 2)
	assert.Equal(t, captured{row: 0, key: []int64{100, 1}}, got[0])
	assert.Equal(t, captured{row: 2, key: []int64{102, 1}}, got[1])
}

func TestHandlerTranslationLeavesNullsAlone(t *testing.T) {
	null := column.NullBigInt
	tuple := tupleOf(t, []int64{null})
	tr := &keys.Translation{Maps: [][]int32{{7}}, MinInnerElems: []int32{0}}

	h, err := keys.NewHandler[int64](tuple, false, tr)
	require.NoError(t, err)
	got := collect(t, h)
	require.Len(t, got, 1)
	assert.Equal(t, []int64{null}, got[0].key)
}

func TestHandlerPropagatesSinkCode(t *testing.T) {
	h, err := keys.NewHandler[int32](tupleOf(t, []int64{1}), true, nil)
	require.NoError(t, err)

	scratch := make([]int32, column.MaxKeyComponents)
	it := h.Slice(0, 1)
	code := h.Handle(&it, scratch, func(int64, []int32) int { return -2 })
	assert.Equal(t, -2, code)
}

func TestNewHandlerValidation(t *testing.T) {
	_, err := keys.NewHandler[int64](column.Tuple{}, true, nil)
	require.Error(t, err)

	tuple := tupleOf(t, []int64{1}, []int64{2})
	_, err = keys.NewHandler[int64](tuple, true, &keys.Translation{Maps: [][]int32{nil}, MinInnerElems: []int32{0}})
	require.Error(t, err)
}
