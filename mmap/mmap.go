// Package mmap maps pages with anonymous memory maps.
package mmap

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	mmapgo "github.com/edsrzf/mmap-go"
)

type Source struct {
	regions int64
}

func NewSource() *Source {
	return &Source{}
}

func (s *Source) Map(length uint64) (unsafe.Pointer, error) {
	if length == 0 || length > math.MaxInt {
		return nil, errors.Newf("mmap %d bytes: invalid length", length)
	}
	m, err := mmapgo.MapRegion(nil, int(length), mmapgo.RDWR, mmapgo.ANON, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %d bytes", length)
	}
	atomic.AddInt64(&s.regions, 1)
	return unsafe.Pointer(&m[0]), nil
}

// Unmap rebuilds the mapping from its base and length; both must match what
// Map returned.
func (s *Source) Unmap(ptr unsafe.Pointer, length uint64) error {
	m := mmapgo.MMap(unsafe.Slice((*byte)(ptr), length))
	if err := m.Unmap(); err != nil {
		return errors.Wrapf(err, "munmap %d bytes at %p", length, ptr)
	}
	atomic.AddInt64(&s.regions, -1)
	return nil
}

// Regions reports how many regions are currently mapped.
func (s *Source) Regions() int64 {
	return atomic.LoadInt64(&s.regions)
}
