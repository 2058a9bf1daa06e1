package column

// Iterator walks the rows of a Column across its fragments.
// The zero value is an exhausted iterator.
type Iterator struct {
	col      *Column
	info     *TypeInfo
	chunk    []byte
	valid    bool
	chunkIdx int
	inChunk  int
	index    int
	step     int
}

// NewIterator positions a cursor at row start; Next advances it by step.
// Work item w of W typically uses NewIterator(col, info, w, W).
func NewIterator(col *Column, info *TypeInfo, start, step int) Iterator {
	it := Iterator{
		col:  col,
		info: info,
		step: start,
	}
	if col.NumElems > 0 && len(col.Chunks) > 0 {
		it.chunk = col.Chunks[0].Data
		it.valid = true
	}
	it.Next()
	it.step = step
	return it
}

// Valid reports whether the cursor points at a row.
func (it *Iterator) Valid() bool {
	return it.valid
}

// Index returns the global row index of the current element.
func (it *Iterator) Index() int {
	return it.index
}

// Info returns the type descriptor of the iterated column.
func (it *Iterator) Info() *TypeInfo {
	return it.info
}

// Element decodes the current element. It must only be called on a valid cursor.
func (it *Iterator) Element() int64 {
	return decode(it.chunk, it.info, it.inChunk)
}

// Next advances the cursor by its step, rolling over fragment boundaries.
func (it *Iterator) Next() {
	it.index += it.step
	it.inChunk += it.step
	for it.valid && it.inChunk >= it.col.Chunks[it.chunkIdx].NumElems {
		it.inChunk -= it.col.Chunks[it.chunkIdx].NumElems
		it.chunkIdx++
		if it.chunkIdx < len(it.col.Chunks) {
			it.chunk = it.col.Chunks[it.chunkIdx].Data
		} else {
			it.chunk = nil
			it.valid = false
		}
	}
}
