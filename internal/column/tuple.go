package column

import "fmt"

// TupleIterator drives one Iterator per key column in lockstep.
type TupleIterator struct {
	numCols int
	its     [MaxKeyComponents]Iterator
}

// NewTupleIterator positions every column cursor at start with a shared step.
// A nil infos slice is not allowed; every column needs a type descriptor.
func NewTupleIterator(cols []Column, infos []TypeInfo, start, step int) TupleIterator {
	if len(cols) > MaxKeyComponents {
		panic(fmt.Sprintf("column: %d key columns exceed the limit of %d", len(cols), MaxKeyComponents))
	}
	t := TupleIterator{numCols: len(cols)}
	for i := range cols {
		t.its[i] = NewIterator(&cols[i], &infos[i], start, step)
	}
	return t
}

// Valid reports whether any column cursor is still valid.
// Columns may be fragmented differently, so one may run out before another.
func (t *TupleIterator) Valid() bool {
	for i := 0; i < t.numCols; i++ {
		if t.its[i].Valid() {
			return true
		}
	}
	return false
}

// Next advances every column cursor.
func (t *TupleIterator) Next() {
	for i := 0; i < t.numCols; i++ {
		t.its[i].Next()
	}
}

// Iterators returns the per-column cursors.
func (t *TupleIterator) Iterators() []Iterator {
	return t.its[:t.numCols]
}

// NumCols returns the number of key columns.
func (t *TupleIterator) NumCols() int {
	return t.numCols
}

// Tuple views several columns and their type descriptors as one key source.
type Tuple struct {
	Columns []Column
	Infos   []TypeInfo
}

// NewTuple pairs columns with their type descriptors.
func NewTuple(cols []Column, infos []TypeInfo) (Tuple, error) {
	if len(cols) != len(infos) {
		return Tuple{}, fmt.Errorf("got %d columns but %d type descriptors", len(cols), len(infos))
	}
	if len(cols) == 0 || len(cols) > MaxKeyComponents {
		return Tuple{}, fmt.Errorf("key must have between 1 and %d columns, got %d", MaxKeyComponents, len(cols))
	}
	return Tuple{Columns: cols, Infos: infos}, nil
}

// Shape returns the number of rows (the longest column) and columns.
func (t Tuple) Shape() (rows, cols int) {
	for i := range t.Columns {
		rows = max(rows, t.Columns[i].NumElems)
	}
	return rows, len(t.Columns)
}

// NumRows returns the number of rows of the tuple.
func (t Tuple) NumRows() int {
	rows, _ := t.Shape()
	return rows
}

// Begin returns a cursor over every row.
func (t Tuple) Begin() TupleIterator {
	return t.Slice(0, 1)
}

// Slice returns a cursor over rows start, start+step, ...
func (t Tuple) Slice(start, step int) TupleIterator {
	return NewTupleIterator(t.Columns, t.Infos, start, step)
}
