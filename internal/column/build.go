package column

import (
	"encoding/binary"
	"math"
)

// FromInt64s splits values into fragments of fragmentSize rows and returns a
// Signed 8-byte column. Values equal to NullBigInt are treated as nulls when
// computing the value range.
func FromInt64s(values []int64, fragmentSize int) (Column, TypeInfo) {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v)) //nolint:gosec // two's complement
	}
	col := split(buf, len(values), 8, fragmentSize)
	info := TypeInfo{ElemSize: 8, NullVal: NullBigInt, TranslatedNullVal: NullBigInt, Type: Signed}
	info.MinVal, info.MaxVal = valueRange(&col, &info)
	return col, info
}

// FromInt32s splits values into fragments of fragmentSize rows and returns a
// Signed 4-byte column.
func FromInt32s(values []int32, fragmentSize int) (Column, TypeInfo) {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v)) //nolint:gosec // two's complement
	}
	col := split(buf, len(values), 4, fragmentSize)
	info := TypeInfo{ElemSize: 4, NullVal: NullInt, TranslatedNullVal: NullInt, Type: Signed}
	info.MinVal, info.MaxVal = valueRange(&col, &info)
	return col, info
}

func split(buf []byte, n, width, fragmentSize int) Column {
	if fragmentSize <= 0 {
		fragmentSize = max(n, 1)
	}
	col := Column{NumElems: n, ElemSize: width}
	for start := 0; start < n; start += fragmentSize {
		end := min(start+fragmentSize, n)
		col.Chunks = append(col.Chunks, Chunk{
			Data:     buf[start*width : end*width],
			NumElems: end - start,
		})
	}
	return col
}

// valueRange scans every non-null element. An all-null column returns (0, 0).
func valueRange(col *Column, info *TypeInfo) (int64, int64) {
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	seen := false
	for it := NewIterator(col, info, 0, 1); it.Valid(); it.Next() {
		v := it.Element()
		if v == info.NullVal {
			continue
		}
		seen = true
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if !seen {
		return 0, 0
	}
	return lo, hi
}
