// Package column describes fragmented join key columns and provides the
// cursors that decode them one logical row at a time.
//
// A Column owns no memory: its chunks reference byte buffers that belong to
// the storage layer. Iterators only keep offsets into those buffers, so they
// are cheap to create per work item and never allocate.
package column

import (
	"fmt"
	"math"
)

// MaxKeyComponents is the maximum number of columns coalesced into one key.
const MaxKeyComponents = 8

// SecondsPerDay scales date-as-days columns to epoch seconds.
const SecondsPerDay = 86400

// ColumnType is the encoding tag of a key column.
type ColumnType int

const (
	// SmallDate stores days since epoch; decoded values are epoch seconds.
	SmallDate ColumnType = iota
	// Signed stores two's complement integers.
	Signed
	// Unsigned stores unsigned integers.
	Unsigned
	// Double stores IEEE-754 float64 values.
	Double
)

// String returns the encoding name.
func (t ColumnType) String() string {
	switch t {
	case SmallDate:
		return "small_date"
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("column_type(%d)", int(t))
	}
}

// Null sentinels, one per storage width.
const (
	NullTinyInt  int64 = math.MinInt8
	NullSmallInt int64 = math.MinInt16
	NullInt      int64 = math.MinInt32
	NullBigInt   int64 = math.MinInt64
)

// NullDouble is the bit pattern of the smallest normal float64.
var NullDouble = int64(math.Float64bits(0x1p-1022)) //nolint:gosec // bit reinterpretation

// Empty key sentinels: the maximum value of the key word width.
const (
	EmptyKey32 int32 = math.MaxInt32
	EmptyKey64 int64 = math.MaxInt64
)

// InvalidStrID marks an untranslatable dictionary id.
const InvalidStrID int32 = -1

// invalidWidthValue is returned when a column declares an unsupported width.
const invalidWidthValue = math.MinInt64 + 1

// Chunk is one fragment of a column.
type Chunk struct {
	Data     []byte
	NumElems int
}

// Column is a fragmented key column.
type Column struct {
	Chunks   []Chunk
	NumElems int
	ElemSize int
}

// TypeInfo carries the per-column decoding and null policy.
type TypeInfo struct {
	ElemSize          int
	MinVal            int64
	MaxVal            int64
	NullVal           int64
	UsesBitwiseEq     bool
	TranslatedNullVal int64
	Type              ColumnType
}

// NullSentinel returns the null sentinel for a column of the given encoding and width.
func NullSentinel(t ColumnType, elemSize int) int64 {
	if t == Double {
		return NullDouble
	}
	if t == Unsigned {
		if elemSize >= 8 {
			return -1
		}
		return int64(1)<<(8*elemSize) - 1
	}
	switch elemSize {
	case 1:
		return NullTinyInt
	case 2:
		return NullSmallInt
	case 4:
		return NullInt
	default:
		return NullBigInt
	}
}
