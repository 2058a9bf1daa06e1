// Package hll estimates the number of distinct key tuples of a column tuple
// with a HyperLogLog sketch.
//
// The sketch is an array of 2^b one-byte registers. Every tuple hashes to 64
// bits; the top b bits select a register and the rank of the remaining bits
// is max-merged into it. Workers update registers concurrently, so each update
// is an atomic max on the 32-bit word containing the register.
package hll

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/paveg/joinhash/internal/column"
	jherrors "github.com/paveg/joinhash/internal/errors"
	"github.com/paveg/joinhash/internal/hashing"
	"github.com/paveg/joinhash/internal/keys"
	"github.com/paveg/joinhash/internal/parallel"
)

// Register bit bounds. Sixteen registers is the smallest sketch with a
// published bias constant.
const (
	MinRegisterBits = 4
	MaxRegisterBits = 18
)

var bigEndian = binary.NativeEndian.Uint16([]byte{0, 1}) == 1

// Rank returns the position of the leading one bit of x, counting from 1,
// capped at b+1.
func Rank(x uint64, b uint32) uint8 {
	return uint8(min(b, uint32(bits.LeadingZeros64(x))) + 1) //nolint:gosec // at most 65
}

// ApproximateDistinctTuples folds every key tuple of h into registers, which
// must hold 2^b zeroed or previously filled registers. When rowCounts is not
// nil, rowCounts[row] is incremented for every row that produced a tuple.
func ApproximateDistinctTuples(
	ctx context.Context,
	dev *parallel.Device,
	registers []uint8,
	rowCounts []int32,
	b uint32,
	h *keys.Handler[int64],
) error {
	const op = "ApproximateDistinctTuples"
	if b < MinRegisterBits || b > MaxRegisterBits {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("register bits must be in [%d, %d], got %d", MinRegisterBits, MaxRegisterBits, b))
	}
	if len(registers) != 1<<b {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("sketch has %d registers, %d bits need %d", len(registers), b, 1<<b))
	}
	if uintptr(unsafe.Pointer(unsafe.SliceData(registers)))%4 != 0 {
		return jherrors.NewInvalidInputError(op, "registers must be 4-byte aligned")
	}
	if rowCounts != nil && len(rowCounts) < h.NumRows() {
		return jherrors.NewInvalidInputError(op,
			fmt.Sprintf("row counts hold %d rows, input has %d", len(rowCounts), h.NumRows()))
	}

	sink := func(row int64, key []int64) int {
		hash := hashing.Hash64(hashing.WordBytes(key), 0)
		idx := int(hash >> (64 - b))
		updateRegister(registers, idx, Rank(hash<<b, 64-b))
		if rowCounts != nil {
			rowCounts[row]++
		}
		return jherrors.CodeOK
	}
	return dev.Strided(ctx, h.NumRows(), func(start, step int) {
		var scratch [column.MaxKeyComponents]int64
		for it := h.Slice(start, step); it.Valid(); it.Next() {
			h.Handle(&it, scratch[:], sink)
		}
	})
}

// updateRegister raises registers[idx] to rank.
func updateRegister(registers []uint8, idx int, rank uint8) {
	word := (*uint32)(unsafe.Pointer(&registers[idx&^3]))
	lane := uint(idx & 3)
	if bigEndian {
		lane = 3 - lane
	}
	shift := lane * 8
	for {
		old := atomic.LoadUint32(word)
		if uint8(old>>shift) >= rank {
			return
		}
		next := old&^(0xff<<shift) | uint32(rank)<<shift
		if atomic.CompareAndSwapUint32(word, old, next) {
			return
		}
	}
}

// Estimate returns the cardinality estimate of a sketch, using linear
// counting while many registers are still empty.
func Estimate(registers []uint8) float64 {
	m := float64(len(registers))
	if m == 0 {
		return 0
	}
	sum := 0.0
	zeros := 0
	for _, r := range registers {
		sum += math.Ldexp(1, -int(r))
		if r == 0 {
			zeros++
		}
	}
	e := alpha(len(registers)) * m * m / sum
	if e <= 2.5*m && zeros > 0 {
		return m * math.Log(m/float64(zeros))
	}
	return e
}

func alpha(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

// Merge folds src into dst. Both sketches must have the same size.
func Merge(dst, src []uint8) error {
	if len(dst) != len(src) {
		return jherrors.NewInvalidInputError("Merge",
			fmt.Sprintf("cannot merge sketches of %d and %d registers", len(dst), len(src)))
	}
	for i, r := range src {
		dst[i] = max(dst[i], r)
	}
	return nil
}
