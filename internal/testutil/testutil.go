// Package testutil provides common testing utilities to reduce code duplication
// across the builder tests.
//
// This package consolidates the patterns shared by the table tests:
// - Checked allocator setup and leak assertions
// - Key column and tuple construction
// - Key handler construction
// - Deterministic key generation
package testutil

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/joinhash/internal/column"
	"github.com/paveg/joinhash/internal/hashtable"
	"github.com/paveg/joinhash/internal/keys"
)

// TestMemoryContext provides a checked allocator that fails the test when
// buffers are still outstanding on Release.
type TestMemoryContext struct {
	Allocator *memory.CheckedAllocator
	tb        testing.TB
}

// Release asserts that every buffer allocated through the context was freed.
func (tmc *TestMemoryContext) Release() {
	tmc.Allocator.AssertSize(tmc.tb, 0)
}

// SetupMemoryTest creates a checked allocator for tests.
// Returns a TestMemoryContext that should be released with defer.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewCheckedAllocator(memory.NewGoAllocator()),
		tb:        tb,
	}
}

// Int64Tuple builds a tuple of signed 8-byte columns split into fragments of
// fragmentSize rows. Zero keeps each column in one fragment.
func Int64Tuple(tb testing.TB, fragmentSize int, columns ...[]int64) column.Tuple {
	tb.Helper()
	cols := make([]column.Column, len(columns))
	infos := make([]column.TypeInfo, len(columns))
	for i, values := range columns {
		cols[i], infos[i] = column.FromInt64s(values, fragmentSize)
	}
	tuple, err := column.NewTuple(cols, infos)
	require.NoError(tb, err)
	return tuple
}

// Int32Tuple builds a tuple of signed 4-byte columns.
func Int32Tuple(tb testing.TB, fragmentSize int, columns ...[]int32) column.Tuple {
	tb.Helper()
	cols := make([]column.Column, len(columns))
	infos := make([]column.TypeInfo, len(columns))
	for i, values := range columns {
		cols[i], infos[i] = column.FromInt32s(values, fragmentSize)
	}
	tuple, err := column.NewTuple(cols, infos)
	require.NoError(tb, err)
	return tuple
}

// HandlerOption configures test handler creation.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	keepNulls   bool
	translation *keys.Translation
}

// WithNullsKept hands rows with null components to the sink.
func WithNullsKept() HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.keepNulls = true
	}
}

// WithTranslation translates key components through tr.
func WithTranslation(tr *keys.Translation) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.translation = tr
	}
}

// NewHandler creates a key handler over tuple that skips null keys unless
// WithNullsKept is given.
func NewHandler[T keys.Word](tb testing.TB, tuple column.Tuple, opts ...HandlerOption) *keys.Handler[T] {
	tb.Helper()
	var cfg handlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	h, err := keys.NewHandler[T](tuple, !cfg.keepNulls, cfg.translation)
	require.NoError(tb, err)
	return h
}

// GenerateKeys returns count keys drawn from distinct values spaced stride
// apart, every value appearing at least once when count >= distinct, in an
// order fixed by seed.
func GenerateKeys(count, distinct int, stride, seed int64) []int64 {
	values := make([]int64, count)
	for i := range count {
		values[i] = int64(i%distinct) * stride
	}
	rand.New(rand.NewSource(seed)).Shuffle(count, func(i, j int) { //nolint:gosec // deterministic test data
		values[i], values[j] = values[j], values[i]
	})
	return values
}

// SortedMatches returns the rows of bucket in ascending order.
func SortedMatches(ix hashtable.Index, bucket int) []int32 {
	rows := slices.Clone(ix.Matches(bucket))
	slices.Sort(rows)
	return rows
}

// AssertIndexConsistent verifies that every bucket range of ix lies inside
// RowIDs, that empty buckets carry invalidSlotVal and that no row id below
// rows appears twice.
func AssertIndexConsistent(tb testing.TB, ix hashtable.Index, rows int, invalidSlotVal int32) {
	tb.Helper()
	seen := make([]bool, rows)
	total := 0
	for b := range ix.EntryCount() {
		if ix.Count[b] == 0 {
			assert.Equal(tb, invalidSlotVal, ix.Pos[b], "empty bucket %d", b)
			continue
		}
		require.LessOrEqual(tb, int(ix.Pos[b]+ix.Count[b]), len(ix.RowIDs), "bucket %d", b)
		for _, r := range ix.Matches(b) {
			require.Less(tb, int(r), rows, "bucket %d", b)
			require.False(tb, seen[r], "row %d stored twice", r)
			seen[r] = true
			total++
		}
	}
	assert.LessOrEqual(tb, total, rows)
}
