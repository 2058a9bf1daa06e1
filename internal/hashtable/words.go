package hashtable

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/paveg/joinhash/internal/column"
	"github.com/paveg/joinhash/internal/keys"
)

// validPosFlag marks a bucket with at least one row between the count and
// scan phases of a one-to-many build.
const validPosFlag int32 = 0

// Words views buf as a slice of T. buf must be aligned to the size of T;
// buffers from the Arrow allocator are 64-byte aligned.
func Words[T keys.Word](buf []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(buf) / size
	if n == 0 {
		return nil
	}
	p := unsafe.Pointer(unsafe.SliceData(buf))
	if uintptr(p)%uintptr(size) != 0 {
		panic(errors.AssertionFailedf("table buffer is not %d-byte aligned", size))
	}
	return unsafe.Slice((*T)(p), n)
}

// EmptyKey returns the empty key sentinel for the word width of T.
func EmptyKey[T keys.Word]() T {
	var zero T
	if unsafe.Sizeof(zero) == 4 {
		return T(column.EmptyKey32)
	}
	empty := column.EmptyKey64
	return T(empty)
}

func loadWord[T keys.Word](p *T) T {
	if unsafe.Sizeof(*p) == 4 {
		return T(atomic.LoadInt32((*int32)(unsafe.Pointer(p))))
	}
	return T(atomic.LoadInt64((*int64)(unsafe.Pointer(p))))
}

func storeWord[T keys.Word](p *T, v T) {
	if unsafe.Sizeof(*p) == 4 {
		atomic.StoreInt32((*int32)(unsafe.Pointer(p)), int32(v))
		return
	}
	atomic.StoreInt64((*int64)(unsafe.Pointer(p)), int64(v))
}

func casWord[T keys.Word](p *T, old, v T) bool {
	if unsafe.Sizeof(*p) == 4 {
		return atomic.CompareAndSwapInt32((*int32)(unsafe.Pointer(p)), int32(old), int32(v))
	}
	return atomic.CompareAndSwapInt64((*int64)(unsafe.Pointer(p)), int64(old), int64(v))
}
