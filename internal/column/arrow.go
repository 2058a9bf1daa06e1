package column

import (
	"encoding/binary"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	jherrors "github.com/paveg/joinhash/internal/errors"
)

// FromChunked converts an Arrow chunked array into a Column, one fragment per chunk.
func FromChunked(chunked *arrow.Chunked) (Column, TypeInfo, error) {
	return FromArrow(chunked.DataType(), chunked.Chunks())
}

// FromArrow converts Arrow arrays of one type into a Column.
// Chunk buffers are referenced, not copied, unless the array carries nulls,
// in which case the values are copied and null slots receive the null sentinel.
func FromArrow(dt arrow.DataType, arrays []arrow.Array) (Column, TypeInfo, error) {
	colType, width, err := encodingOf(dt)
	if err != nil {
		return Column{}, TypeInfo{}, err
	}

	null := NullSentinel(colType, width)
	info := TypeInfo{
		ElemSize:          width,
		NullVal:           null,
		TranslatedNullVal: null,
		Type:              colType,
	}
	col := Column{ElemSize: width}
	for _, arr := range arrays {
		if !arrow.TypeEqual(arr.DataType(), dt) {
			return Column{}, TypeInfo{}, fmt.Errorf("chunk type %s does not match column type %s", arr.DataType(), dt)
		}
		chunk := Chunk{Data: chunkBytes(arr, width, null), NumElems: arr.Len()}
		if err := checkSentinel(arr, chunk, &info, col.NumElems); err != nil {
			return Column{}, TypeInfo{}, err
		}
		col.Chunks = append(col.Chunks, chunk)
		col.NumElems += arr.Len()
	}
	if colType != Double {
		info.MinVal, info.MaxVal = valueRange(&col, &info)
	}
	return col, info, nil
}

func encodingOf(dt arrow.DataType) (ColumnType, int, error) {
	switch dt.ID() {
	case arrow.INT8:
		return Signed, 1, nil
	case arrow.INT16:
		return Signed, 2, nil
	case arrow.INT32:
		return Signed, 4, nil
	case arrow.INT64:
		return Signed, 8, nil
	case arrow.UINT8:
		return Unsigned, 1, nil
	case arrow.UINT16:
		return Unsigned, 2, nil
	case arrow.UINT32:
		return Unsigned, 4, nil
	case arrow.UINT64:
		return Unsigned, 8, nil
	case arrow.DATE32:
		return SmallDate, 4, nil
	case arrow.FLOAT64:
		return Double, 8, nil
	default:
		return 0, 0, jherrors.NewUnsupportedTypeError("FromArrow", dt.String())
	}
}

// checkSentinel fails when a non-null element of arr decodes to the null
// sentinel, which the builders would silently skip. offset is the row index
// of the chunk's first element.
func checkSentinel(arr arrow.Array, chunk Chunk, info *TypeInfo, offset int) error {
	for i := 0; i < chunk.NumElems; i++ {
		if arr.IsValid(i) && decode(chunk.Data, info, i) == info.NullVal {
			return jherrors.NewInvalidInputError("FromArrow",
				fmt.Sprintf("row %d holds the null sentinel %d of %s keys", offset+i, info.NullVal, arr.DataType()))
		}
	}
	return nil
}

func chunkBytes(arr arrow.Array, width int, null int64) []byte {
	data := arr.Data()
	bufs := data.Buffers()
	if arr.Len() == 0 || len(bufs) < 2 || bufs[1] == nil {
		return nil
	}
	start := data.Offset() * width
	raw := bufs[1].Bytes()[start : start+arr.Len()*width]
	if arr.NullN() == 0 {
		return raw
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			putWidth(out[i*width:], width, null)
		}
	}
	return out
}

func putWidth(b []byte, width int, v int64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v)) //nolint:gosec // truncation to storage width
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v)) //nolint:gosec // truncation to storage width
	default:
		binary.LittleEndian.PutUint64(b, uint64(v)) //nolint:gosec // two's complement
	}
}
