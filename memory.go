package hmalloc

import (
	"unsafe"
)

const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// PageSize is the granularity every Page Source maps in, and the size tag
// threshold of the coalescing strategy.
const PageSize = 4 * KB

// PageSource 向操作系统申请/归还整页内存
type PageSource interface {
	// Map reserve length bytes of zeroed, page aligned memory
	Map(length uint64) (unsafe.Pointer, error)
	// Unmap release a region previously returned by Map with the same length
	Unmap(ptr unsafe.Pointer, length uint64) error
}

// Allocator is the allocate/free/reallocate contract shared by every strategy.
// A caller cannot tell which strategy serviced a pointer.
type Allocator interface {
	// Allocate returns a pointer to at least size usable bytes.
	Allocate(size uint64) (unsafe.Pointer, error)
	// Free releases ptr. ptr must come from Allocate or Reallocate of the same
	// allocator; anything else is undefined behavior.
	Free(ptr unsafe.Pointer)
	// Reallocate resizes ptr keeping min(old, size) bytes. A nil ptr behaves
	// like Allocate.
	Reallocate(ptr unsafe.Pointer, size uint64) (unsafe.Pointer, error)
	// UsableSize reports how many bytes behind ptr the caller may use.
	UsableSize(ptr unsafe.Pointer) uint64
}
