package hmalloc

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// As views the payload at ptr as *T.
func As[T any](ptr unsafe.Pointer) *T {
	return (*T)(ptr)
}

// Bytes views n payload bytes at ptr as a slice. The slice must not outlive
// the block.
func Bytes(ptr unsafe.Pointer, n uint64) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

func divUp[T constraints.Unsigned](x, y T) T {
	z := x / y
	if z*y == x {
		return z
	}
	return z + 1
}

func memmove(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
