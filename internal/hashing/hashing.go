// Package hashing provides the non-cryptographic hash functions used to
// address hash table slots and to feed the distinct-value counter.
package hashing

import (
	"unsafe"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"golang.org/x/exp/constraints"
)

// Hash32 hashes raw key bytes for slot addressing.
func Hash32(b []byte, seed uint32) uint32 {
	return murmur3.Sum32WithSeed(b, seed)
}

// Hash64 hashes raw key bytes for cardinality estimation.
func Hash64(b []byte, seed uint64) uint64 {
	if seed == 0 {
		return xxhash.Sum64(b)
	}
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(b)
	return d.Sum64()
}

// WordBytes returns the bytes backing a key tuple without copying.
func WordBytes[T constraints.Integer](key []T) []byte {
	if len(key) == 0 {
		return nil
	}
	var zero T
	size := len(key) * int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(key))), size)
}

// Slot returns the table slot for a key tuple in a table of entryCount slots.
func Slot[T constraints.Integer](key []T, entryCount int) int {
	return int(Hash32(WordBytes(key), 0) % uint32(entryCount)) //nolint:gosec // entryCount is positive and fits the table
}
