package column

import (
	"encoding/binary"
	"math"
)

// DecodeInt sign-extends the element at pos from a byteWidth-wide stream.
func DecodeInt(stream []byte, byteWidth int, pos int) int64 {
	off := pos * byteWidth
	switch byteWidth {
	case 1:
		return int64(int8(stream[off]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(stream[off:]))) //nolint:gosec // sign extension
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(stream[off:]))) //nolint:gosec // sign extension
	case 8:
		return int64(binary.LittleEndian.Uint64(stream[off:])) //nolint:gosec // two's complement reinterpretation
	default:
		return invalidWidthValue
	}
}

// DecodeUnsigned zero-extends the element at pos from a byteWidth-wide stream.
func DecodeUnsigned(stream []byte, byteWidth int, pos int) int64 {
	off := pos * byteWidth
	switch byteWidth {
	case 1:
		return int64(stream[off])
	case 2:
		return int64(binary.LittleEndian.Uint16(stream[off:]))
	case 4:
		return int64(binary.LittleEndian.Uint32(stream[off:]))
	case 8:
		return int64(binary.LittleEndian.Uint64(stream[off:])) //nolint:gosec // wraps above MaxInt64
	default:
		return invalidWidthValue
	}
}

// DecodeSmallDate decodes days since epoch and scales them to seconds.
// A stored null sentinel decodes to retNull.
func DecodeSmallDate(stream []byte, byteWidth int, null, retNull int64, pos int) int64 {
	v := DecodeInt(stream, byteWidth, pos)
	if v == null {
		return retNull
	}
	return v * SecondsPerDay
}

// DecodeDouble returns the float64 at pos as its raw bit pattern.
func DecodeDouble(stream []byte, pos int) int64 {
	return int64(binary.LittleEndian.Uint64(stream[pos*8:])) //nolint:gosec // bit reinterpretation
}

// DoubleValue recovers the float64 from a decoded Double element.
func DoubleValue(elem int64) float64 {
	return math.Float64frombits(uint64(elem)) //nolint:gosec // bit reinterpretation
}

func decode(stream []byte, info *TypeInfo, pos int) int64 {
	switch info.Type {
	case SmallDate:
		null := NullSmallInt
		if info.ElemSize == 4 {
			null = NullInt
		}
		return DecodeSmallDate(stream, info.ElemSize, null, null, pos)
	case Signed:
		return DecodeInt(stream, info.ElemSize, pos)
	case Unsigned:
		return DecodeUnsigned(stream, info.ElemSize, pos)
	case Double:
		return DecodeDouble(stream, pos)
	default:
		panic("column: unknown column type " + info.Type.String())
	}
}
