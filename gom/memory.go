package gom

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
)

const pageSize = 4096

var ErrUnknownRegion = errors.New("region was not mapped by this source")

// Source hands out page aligned regions carved from the Go heap. Regions stay
// reachable through the source until unmapped, so the collector never frees
// memory a caller still holds. Useful where anonymous maps are unavailable
// and in tests that want no syscalls.
//
// The allocators keep block addresses as uintptr and rebuild pointers from
// them, which checkptr rejects for Go heap memory. Builds with -race or
// -d=checkptr abort on this source; use the mmap source there.
type Source struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

func NewSource() *Source {
	return &Source{regions: make(map[uintptr][]byte)}
}

func (s *Source) Map(length uint64) (unsafe.Pointer, error) {
	if length == 0 {
		return nil, errors.New("map zero bytes")
	}
	if length > uint64(^uint(0)>>1)-pageSize {
		return nil, errors.Newf("map %d bytes: too large", length)
	}

	mem := make([]byte, int(length)+pageSize)
	base := uintptr(unsafe.Pointer(&mem[0]))
	off := (base+pageSize-1)&^(pageSize-1) - base
	region := mem[off : off+uintptr(length)]
	ptr := unsafe.Pointer(&region[0])

	s.mu.Lock()
	s.regions[uintptr(ptr)] = region
	s.mu.Unlock()
	return ptr, nil
}

func (s *Source) Unmap(ptr unsafe.Pointer, length uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	region, ok := s.regions[uintptr(ptr)]
	if !ok || uint64(len(region)) != length {
		return errors.Wrapf(ErrUnknownRegion, "unmap %d bytes at %p", length, ptr)
	}
	delete(s.regions, uintptr(ptr))
	return nil
}

// Regions reports how many regions are currently mapped.
func (s *Source) Regions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regions)
}
