package hmalloc

import "github.com/cockroachdb/errors"

var (
	ErrOutOfMemory  = errors.New("page source cannot map memory")
	ErrSizeOverflow = errors.New("requested size overflows the address space")
	ErrUnsupported  = errors.New("not supported on this platform")
)

// outOfMemory keeps the page source's cause while letting callers match
// ErrOutOfMemory with errors.Is.
func outOfMemory(err error, length uintptr) error {
	return errors.Mark(errors.Wrapf(err, "map %d bytes", length), ErrOutOfMemory)
}
