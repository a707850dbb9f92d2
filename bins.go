package hmalloc

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
	"modernc.org/mathutil"
)

// binSizes are the cell sizes, header included. Each is a power of two so a
// class maps to its slot with one bit length.
var binSizes = [...]uintptr{32, 64, 128, 256, 512, 1024, 2048}

const (
	numBins = len(binSizes)
	// binIndexOffset is log2 of the smallest class
	binIndexOffset = 5
	// binThreshold is the largest class. Requests reaching it are mapped
	// directly and tags at or above it mean "mapped".
	binThreshold = 2048
)

// classOf returns the smallest class holding ext bytes. ext must be below
// binThreshold.
func classOf(ext uintptr) uintptr {
	if ext <= binSizes[0] {
		return binSizes[0]
	}
	return 1 << mathutil.BitLen(int(ext-1))
}

// lookup maps a class to its slot in a bin table.
func lookup(class uintptr) int {
	return mathutil.BitLen(int(class)) - 1 - binIndexOffset
}

// Thread is one thread's bin table: a LIFO chain of free cells per class.
// It is never locked, so it must only ever be used by one thread at a time.
// Pages sliced into cells stay with the table for good.
type Thread struct {
	source PageSource
	logger *slog.Logger
	bins   [numBins]uintptr
	pages  int64
}

func (t *Thread) Allocate(size uint64) (unsafe.Pointer, error) {
	ext, err := extent(size, sizeOfFreeNode)
	if err != nil {
		return nil, err
	}

	if ext >= binThreshold {
		ptr, _, err := mapLarge(t.source, t.logger, ext)
		return ptr, err
	}

	class := classOf(ext)
	idx := lookup(class)
	if t.bins[idx] == 0 {
		if err = t.fill(idx, class); err != nil {
			return nil, err
		}
	}

	cell := nodeAt(t.bins[idx])
	t.bins[idx] = cell.next
	addr := cell.addr()
	stamp(addr, class-headerSize)
	return payload(addr), nil
}

func (t *Thread) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	tag := readHeader(ptr)
	if tag >= binThreshold {
		unmapLarge(t.source, t.logger, ptr)
		return
	}

	class := tag + headerSize
	idx := lookup(class)
	if idx < 0 || idx >= numBins || binSizes[idx] != class {
		panic(errors.AssertionFailedf("size tag %d names no size class", tag))
	}
	cell := nodeAt(blockAddr(ptr))
	cell.reset(class, t.bins[idx])
	t.bins[idx] = cell.addr()
}

// Reallocate always copies, even when the new size lands in the same class.
func (t *Thread) Reallocate(ptr unsafe.Pointer, size uint64) (unsafe.Pointer, error) {
	if ptr == nil {
		return t.Allocate(size)
	}
	dst, err := t.Allocate(size)
	if err != nil {
		return nil, err
	}
	memmove(dst, ptr, uintptr(min(t.UsableSize(ptr), size)))
	t.Free(ptr)
	return dst, nil
}

func (t *Thread) UsableSize(ptr unsafe.Pointer) uint64 {
	tag := readHeader(ptr)
	if tag >= binThreshold {
		return uint64(tag - headerSize)
	}
	return uint64(tag)
}

// Pages reports how many pages this table has sliced into cells.
func (t *Thread) Pages() int64 {
	return t.pages
}

// fill maps one page and slices it into cells of class bytes, chained in
// ascending address order.
func (t *Thread) fill(idx int, class uintptr) error {
	base, err := t.source.Map(PageSize)
	if err != nil {
		t.logger.Error("map bin page failed", slog.Uint64("class", uint64(class)), slog.Any("error", err))
		return outOfMemory(err, PageSize)
	}
	t.pages++

	start := uintptr(base)
	cells := uintptr(PageSize) / class
	head := t.bins[idx]
	for i := cells; i > 0; i-- {
		cell := nodeAt(start + (i-1)*class)
		cell.reset(class, head)
		head = cell.addr()
	}
	t.bins[idx] = head
	t.logger.Debug("sliced bin page", slog.Uint64("class", uint64(class)), slog.Uint64("cells", uint64(cells)))
	return nil
}

// Bins is the segregated size class strategy. Each OS thread gets its own
// Thread on first use; calls pin the goroutine to its thread for their
// duration so no bin list is ever shared.
//
// A block may be freed on a different thread than the one that allocated it:
// the cell then joins the freeing thread's bin.
type Bins struct {
	source  PageSource
	logger  *slog.Logger
	threads registry
}

func NewBins(src PageSource, opts ...Option) *Bins {
	o := buildOptions(opts)
	b := &Bins{
		source: src,
		logger: o.logger,
	}
	b.threads.init()
	return b
}

// NewThread returns a fresh bin table for a caller that manages thread
// ownership itself.
func (b *Bins) NewThread() *Thread {
	return &Thread{source: b.source, logger: b.logger}
}

// Threads reports how many OS threads have a bin table.
func (b *Bins) Threads() int {
	return b.threads.len()
}

func (b *Bins) Allocate(size uint64) (unsafe.Pointer, error) {
	t, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer runtime.UnlockOSThread()
	return t.Allocate(size)
}

func (b *Bins) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	t, err := b.acquire()
	if err != nil {
		panic(err)
	}
	defer runtime.UnlockOSThread()
	t.Free(ptr)
}

func (b *Bins) Reallocate(ptr unsafe.Pointer, size uint64) (unsafe.Pointer, error) {
	t, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer runtime.UnlockOSThread()
	return t.Reallocate(ptr, size)
}

func (b *Bins) UsableSize(ptr unsafe.Pointer) uint64 {
	tag := readHeader(ptr)
	if tag >= binThreshold {
		return uint64(tag - headerSize)
	}
	return uint64(tag)
}

// acquire pins the goroutine and returns its thread's table. On success the
// caller must runtime.UnlockOSThread.
func (b *Bins) acquire() (*Thread, error) {
	runtime.LockOSThread()
	tid, ok := threadID()
	if !ok {
		runtime.UnlockOSThread()
		return nil, ErrUnsupported
	}
	return b.threads.get(tid, b.NewThread), nil
}
