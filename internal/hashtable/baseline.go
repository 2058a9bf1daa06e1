package hashtable

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/paveg/joinhash/internal/column"
	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/hashing"
	"github.com/paveg/joinhash/internal/keys"
)

// BaselineLayout describes an open-addressed table of EntryCount entries.
// Each entry holds KeyComponentCount key words followed, when WithValSlot is
// set, by one value word.
type BaselineLayout struct {
	EntryCount        int
	KeyComponentCount int
	WithValSlot       bool
}

// EntrySizeWords returns the number of words per entry.
func (l BaselineLayout) EntrySizeWords() int {
	if l.WithValSlot {
		return l.KeyComponentCount + 1
	}
	return l.KeyComponentCount
}

// Words returns the number of words in the table.
func (l BaselineLayout) Words() int {
	return l.EntryCount * l.EntrySizeWords()
}

// Validate checks the layout for a build.
func (l BaselineLayout) Validate(op string) error {
	if l.EntryCount <= 0 {
		return jherrors.NewInvalidInputError(op, fmt.Sprintf("entry count must be positive, got %d", l.EntryCount))
	}
	if l.KeyComponentCount <= 0 {
		return jherrors.NewInvalidInputError(op, "key must have at least one component")
	}
	if l.KeyComponentCount > column.MaxKeyComponents {
		return jherrors.ErrTooManyKeyComponents
	}
	return nil
}

// BaselineSizeBytes returns the buffer size of a table with layout l and key
// word T.
func BaselineSizeBytes[T keys.Word](l BaselineLayout) int {
	var zero T
	return l.Words() * int(unsafe.Sizeof(zero))
}

func checkBaselineBuffer[T keys.Word](op string, table []T, l BaselineLayout) error {
	if err := l.Validate(op); err != nil {
		return err
	}
	if len(table) < l.Words() {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("table has %d words, layout needs %d", len(table), l.Words()))
	}
	return nil
}

// InitBaseline resets every entry to the empty key and, when present, the
// value word to invalidSlotVal.
func InitBaseline[T keys.Word](ctx context.Context, env *Env, table []T, l BaselineLayout, invalidSlotVal int32) error {
	const op = "InitBaseline"
	if err := checkBaselineBuffer(op, table, l); err != nil {
		return err
	}
	empty := EmptyKey[T]()
	ew := l.EntrySizeWords()
	kc := l.KeyComponentCount
	return env.parallelFor(ctx, "init_baseline", l.EntryCount, func(i int) {
		entry := table[i*ew : (i+1)*ew]
		for j := 0; j < kc; j++ {
			entry[j] = empty
		}
		if l.WithValSlot {
			entry[kc] = T(invalidSlotVal)
		}
	})
}

// baselineWriter inserts keys into a table that other workers fill
// concurrently.
type baselineWriter[T keys.Word] struct {
	env   *Env
	table []T
	n     int
	ew    int
	kc    int
	empty T
}

// matchingSlotAt claims the entry at slot when it is empty, waits until the
// entry holds a complete key and reports whether that key equals key. On a
// match it returns the word offset of the entry.
func (w *baselineWriter[T]) matchingSlotAt(slot int, key []T) (int, bool) {
	off := slot * w.ew
	entry := w.table[off : off+w.ew]
	if casWord(&entry[0], w.empty, key[0]) {
		for i := 1; i < w.kc; i++ {
			storeWord(&entry[i], key[i])
		}
	}
	if w.kc > 1 {
		last := &entry[w.kc-1]
		spins := 0
		for loadWord(last) == w.empty {
			spins++
		}
		if spins > 0 {
			w.env.observeSpin(spins)
		}
	}
	for i := 0; i < w.kc; i++ {
		if loadWord(&entry[i]) != key[i] {
			return 0, false
		}
	}
	return off, true
}

// insert finds or claims the entry for key by linear probing.
func (w *baselineWriter[T]) insert(key []T) (int, bool) {
	h := hashing.Slot(key, w.n)
	if off, ok := w.matchingSlotAt(h, key); ok {
		return off, true
	}
	for i := (h + 1) % w.n; i != h; i = (i + 1) % w.n {
		if off, ok := w.matchingSlotAt(i, key); ok {
			return off, true
		}
	}
	return 0, false
}

// FillBaseline inserts the key of every row produced by h. In one-to-one mode
// the value word records the row id and a second row with the same key sets
// CodeOneToOneViolation; in semi-join mode the value word is written at most
// once and conflicts are ignored. A full table sets CodeTableFull. Keys must
// not contain the empty key sentinel.
func FillBaseline[T keys.Word](
	ctx context.Context,
	env *Env,
	table []T,
	l BaselineLayout,
	invalidSlotVal int32,
	forSemiJoin bool,
	h *keys.Handler[T],
	errs *ErrorCell,
) error {
	const op = "FillBaseline"
	if err := checkBaselineBuffer(op, table, l); err != nil {
		return err
	}
	if h.KeyComponentCount() != l.KeyComponentCount {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("handler produces %d key words, layout expects %d", h.KeyComponentCount(), l.KeyComponentCount))
	}

	w := &baselineWriter[T]{
		env:   env,
		table: table,
		n:     l.EntryCount,
		ew:    l.EntrySizeWords(),
		kc:    l.KeyComponentCount,
		empty: EmptyKey[T](),
	}
	invalid := T(invalidSlotVal)

	var sink keys.Sink[T]
	switch {
	case forSemiJoin:
		sink = func(row int64, key []T) int {
			off, ok := w.insert(key)
			if !ok {
				return jherrors.CodeTableFull
			}
			if l.WithValSlot {
				casWord(&table[off+w.kc], invalid, T(row))
			}
			return jherrors.CodeOK
		}
	default:
		sink = func(row int64, key []T) int {
			off, ok := w.insert(key)
			if !ok {
				return jherrors.CodeTableFull
			}
			if l.WithValSlot && !casWord(&table[off+w.kc], invalid, T(row)) {
				return jherrors.CodeOneToOneViolation
			}
			return jherrors.CodeOK
		}
	}

	return env.strided(ctx, "fill_baseline", h.NumRows(), func(start, step int) {
		var scratch [column.MaxKeyComponents]T
		for it := h.Slice(start, step); it.Valid(); it.Next() {
			errs.Store(h.Handle(&it, scratch[:], sink))
		}
	})
}

// ProbeBaseline returns the index of the entry holding key in a finished
// table, or false when the key is absent.
func ProbeBaseline[T keys.Word](dict []T, l BaselineLayout, key []T) (int, bool) {
	n := l.EntryCount
	ew := l.EntrySizeWords()
	empty := EmptyKey[T]()
	h := hashing.Slot(key, n)
	i := h
	for {
		entry := dict[i*ew : i*ew+l.KeyComponentCount]
		if keyEqual(entry, key) {
			return i, true
		}
		if entry[0] == empty {
			return 0, false
		}
		i = (i + 1) % n
		if i == h {
			return 0, false
		}
	}
}

// LookupBaseline returns the index of the entry holding key. The key must be
// present: a miss means the dictionary was not built from the same rows and
// is reported as an assertion failure.
func LookupBaseline[T keys.Word](dict []T, l BaselineLayout, key []T) int {
	idx, ok := ProbeBaseline(dict, l, key)
	if !ok {
		panic(errors.AssertionFailedf("key %v not found in a dictionary of %d entries", key, l.EntryCount))
	}
	return idx
}

func keyEqual[T keys.Word](a, b []T) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
