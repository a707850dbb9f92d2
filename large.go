package hmalloc

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// mapLarge serves a block of ext bytes from its own mapping. The header holds
// the full mapped length, which is at least PageSize and so reads as "mapped"
// under every strategy's threshold.
func mapLarge(src PageSource, logger *slog.Logger, ext uintptr) (unsafe.Pointer, uintptr, error) {
	pages := divUp(ext, uintptr(PageSize))
	length := pages * PageSize
	base, err := src.Map(uint64(length))
	if err != nil {
		logger.Error("map large block failed", slog.Uint64("length", uint64(length)), slog.Any("error", err))
		return nil, 0, outOfMemory(err, length)
	}
	addr := uintptr(base)
	stamp(addr, length)
	logger.Debug("mapped large block", slog.Uint64("length", uint64(length)), slog.Uint64("pages", uint64(pages)))
	return payload(addr), pages, nil
}

// unmapLarge releases the mapping behind ptr and reports how many pages it
// spanned.
func unmapLarge(src PageSource, logger *slog.Logger, ptr unsafe.Pointer) uintptr {
	length := readHeader(ptr)
	addr := blockAddr(ptr)
	if err := src.Unmap(unsafe.Pointer(addr), uint64(length)); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "unmap %d bytes at %#x", length, addr))
	}
	logger.Debug("unmapped large block", slog.Uint64("length", uint64(length)))
	return length / PageSize
}
