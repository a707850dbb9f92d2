// Package shm maps pages as private System V shared memory segments. Each
// segment is marked for removal as soon as it is attached, so it disappears
// with its last detach and never outlives the process.
package shm

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

const shmAccess = 0o600

var ErrUnsupported = errors.New("shm page source is not supported on this platform")

type Source struct {
	attached int64
}

func NewSource() *Source {
	return &Source{}
}

// Attached reports how many segments are currently attached.
func (s *Source) Attached() int64 {
	return atomic.LoadInt64(&s.attached)
}
