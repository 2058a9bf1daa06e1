// Package keys assembles join keys from column tuples and hands them to
// the table writers.
package keys

import (
	"fmt"

	"github.com/paveg/joinhash/internal/column"
)

// Word is the integer type of one key component as stored in a table.
type Word interface {
	~int32 | ~int64
}

// Sink receives an assembled key and the row that produced it. The key slice
// is scratch space owned by the caller and must not be retained. A non-zero
// return is a build code reported through the build's error cell.
type Sink[T Word] func(rowIndex int64, key []T) int

// Translation rewrites inner dictionary ids into outer dictionary ids.
// Maps[i] is nil for components that need no translation.
type Translation struct {
	Maps          [][]int32
	MinInnerElems []int32
}

// Translate returns the outer id for elem, or InvalidStrID when elem has no
// counterpart (including ids outside the map).
func (t *Translation) Translate(component int, elem int64) int64 {
	m := t.Maps[component]
	off := elem - int64(t.MinInnerElems[component])
	if off < 0 || off >= int64(len(m)) {
		return int64(column.InvalidStrID)
	}
	return int64(m[off])
}

// Handler builds keys of T words from a column tuple.
type Handler[T Word] struct {
	tuple             column.Tuple
	keyComponentCount int
	shouldSkipEntries bool
	translation       *Translation
}

// NewHandler returns a handler over every column of tuple. When
// shouldSkipEntries is set, a row with a null component is skipped unless
// that column uses bitwise-equality null semantics.
func NewHandler[T Word](tuple column.Tuple, shouldSkipEntries bool, translation *Translation) (*Handler[T], error) {
	_, n := tuple.Shape()
	if n == 0 || n > column.MaxKeyComponents {
		return nil, fmt.Errorf("key must have between 1 and %d components, got %d", column.MaxKeyComponents, n)
	}
	if translation != nil {
		if len(translation.Maps) != n || len(translation.MinInnerElems) != n {
			return nil, fmt.Errorf("translation covers %d/%d components, key has %d",
				len(translation.Maps), len(translation.MinInnerElems), n)
		}
	}
	return &Handler[T]{
		tuple:             tuple,
		keyComponentCount: n,
		shouldSkipEntries: shouldSkipEntries,
		translation:       translation,
	}, nil
}

// KeyComponentCount returns the number of words per key.
func (h *Handler[T]) KeyComponentCount() int {
	return h.keyComponentCount
}

// NumRows returns the number of input rows.
func (h *Handler[T]) NumRows() int {
	return h.tuple.NumRows()
}

// Tuple returns the key columns.
func (h *Handler[T]) Tuple() column.Tuple {
	return h.tuple
}

// Slice returns a cursor over rows start, start+step, ...
func (h *Handler[T]) Slice(start, step int) column.TupleIterator {
	return h.tuple.Slice(start, step)
}

// Handle assembles the key at the cursor position into scratch and forwards it
// to sink. Skipped rows return 0.
func (h *Handler[T]) Handle(it *column.TupleIterator, scratch []T, sink Sink[T]) int {
	its := it.Iterators()
	for i := 0; i < h.keyComponentCount; i++ {
		cur := &its[i]
		if !cur.Valid() {
			return 0
		}
		info := cur.Info()
		elem := cur.Element()
		if h.shouldSkipEntries && elem == info.NullVal && !info.UsesBitwiseEq {
			return 0
		}
		if h.translation != nil && h.translation.Maps[i] != nil && elem != info.NullVal {
			outer := h.translation.Translate(i, elem)
			if outer == int64(column.InvalidStrID) {
				return 0
			}
			elem = outer
		}
		scratch[i] = T(elem)
	}
	return sink(int64(its[0].Index()), scratch[:h.keyComponentCount])
}
