package hmalloc

import "unsafe"

// headerSize is the width of the size tag stamped immediately before every
// payload returned to a caller.
//
// The tag does double duty. At or above the strategy's threshold it is the
// full length of an independent mapping; below it, it is the usable payload
// length of a block living in a shared page. Splits and merges must never
// produce a small tag at or above the threshold.
const headerSize = unsafe.Sizeof(uintptr(0))

// maxRequest caps sizes before header arithmetic so extents never wrap.
const maxRequest = uint64(^uintptr(0) >> 1)

func encodeHeader(ptr unsafe.Pointer, tag uintptr) {
	*(*uintptr)(unsafe.Add(ptr, -int(headerSize))) = tag
}

func readHeader(ptr unsafe.Pointer) uintptr {
	return *(*uintptr)(unsafe.Add(ptr, -int(headerSize)))
}

// payload returns the caller visible pointer of the raw block at addr.
func payload(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr + headerSize)
}

// blockAddr is the inverse of payload.
func blockAddr(ptr unsafe.Pointer) uintptr {
	return uintptr(ptr) - headerSize
}

// stamp writes tag into the header word at the raw block address.
func stamp(addr uintptr, tag uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = tag
}

func alignWord(n uintptr) uintptr {
	return (n + headerSize - 1) &^ (headerSize - 1)
}

// extent converts a request into the raw block length it needs: header
// included, word aligned and never smaller than least.
func extent(size uint64, least uintptr) (uintptr, error) {
	if size > maxRequest {
		return 0, ErrSizeOverflow
	}
	n := alignWord(uintptr(size) + headerSize)
	if n < least {
		n = least
	}
	return n, nil
}
