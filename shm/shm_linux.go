package shm

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func (s *Source) Map(length uint64) (unsafe.Pointer, error) {
	if length == 0 || length > math.MaxInt {
		return nil, errors.Newf("shmget %d bytes: invalid length", length)
	}

	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, int(length), unix.IPC_CREAT|unix.IPC_EXCL|shmAccess)
	if err != nil {
		return nil, errors.Wrapf(err, "shmget %d bytes", length)
	}

	data, err := unix.SysvShmAttach(id, 0, 0)
	// the id is private, drop it now; the segment lives until detached
	_, rmErr := unix.SysvShmCtl(id, unix.IPC_RMID, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "shmat segment %d", id)
	}
	if rmErr != nil {
		_ = unix.SysvShmDetach(data)
		return nil, errors.Wrapf(rmErr, "remove segment %d", id)
	}

	atomic.AddInt64(&s.attached, 1)
	return unsafe.Pointer(&data[0]), nil
}

func (s *Source) Unmap(ptr unsafe.Pointer, length uint64) error {
	if err := unix.SysvShmDetach(unsafe.Slice((*byte)(ptr), length)); err != nil {
		return errors.Wrapf(err, "shmdt %p", ptr)
	}
	atomic.AddInt64(&s.attached, -1)
	return nil
}
