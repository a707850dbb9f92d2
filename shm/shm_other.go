//go:build !linux

package shm

import "unsafe"

func (s *Source) Map(length uint64) (unsafe.Pointer, error) {
	return nil, ErrUnsupported
}

func (s *Source) Unmap(ptr unsafe.Pointer, length uint64) error {
	return ErrUnsupported
}
