package hmalloc

import (
	"io"
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// FreeList is the coalescing strategy: one address ordered, singly linked
// list of free nodes shared by every goroutine and guarded by one lock.
// Requests of a page or more bypass the list and get their own mapping.
//
// Small pages, once mapped, are never returned to the page source.
type FreeList struct {
	source PageSource
	logger *slog.Logger
	locker Locker
	head   uintptr
	stats  Stats
}

func NewFreeList(src PageSource, opts ...Option) *FreeList {
	o := buildOptions(opts)
	return &FreeList{
		source: src,
		logger: o.logger,
		locker: o.locker,
	}
}

func (f *FreeList) Allocate(size uint64) (unsafe.Pointer, error) {
	ext, err := extent(size, sizeOfFreeNode)
	if err != nil {
		return nil, err
	}

	if ext >= PageSize {
		ptr, pages, err := mapLarge(f.source, f.logger, ext)
		if err != nil {
			return nil, err
		}
		f.locker.Lock()
		f.stats.PagesMapped += int64(pages)
		f.stats.ChunksAllocated++
		f.locker.Unlock()
		return ptr, nil
	}

	f.locker.Lock()
	defer f.locker.Unlock()
	ptr, err := f.allocSmall(ext)
	if err != nil {
		return nil, err
	}
	f.stats.ChunksAllocated++
	return ptr, nil
}

func (f *FreeList) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	tag := readHeader(ptr)
	if tag >= PageSize {
		pages := unmapLarge(f.source, f.logger, ptr)
		f.locker.Lock()
		f.stats.PagesUnmapped += int64(pages)
		f.stats.ChunksFreed++
		f.locker.Unlock()
		return
	}

	f.locker.Lock()
	defer f.locker.Unlock()
	node := nodeAt(blockAddr(ptr))
	node.reset(tag+headerSize, 0)
	f.insert(node)
	f.stats.ChunksFreed++
	f.coalesce()
}

func (f *FreeList) Reallocate(ptr unsafe.Pointer, size uint64) (unsafe.Pointer, error) {
	if ptr == nil {
		return f.Allocate(size)
	}

	old := f.UsableSize(ptr)
	if size == old {
		return ptr, nil
	}

	ext, err := extent(size, sizeOfFreeNode)
	if err != nil {
		return nil, err
	}

	tag := readHeader(ptr)
	if tag >= PageSize {
		// a mapped block keeps its mapping unless it can drop to the list
		if size > old || ext < PageSize {
			return f.move(ptr, size, old)
		}
		return ptr, nil
	}

	if size > old {
		return f.move(ptr, size, old)
	}

	addr := blockAddr(ptr)
	remainder := tag + headerSize - ext
	if remainder < sizeOfFreeNode {
		// too small to ever host a node, leave it inside the block
		return ptr, nil
	}

	f.locker.Lock()
	defer f.locker.Unlock()
	rest := nodeAt(addr + ext)
	rest.reset(remainder, 0)
	stamp(addr, ext-headerSize)
	f.insert(rest)
	f.coalesce()
	return ptr, nil
}

func (f *FreeList) UsableSize(ptr unsafe.Pointer) uint64 {
	tag := readHeader(ptr)
	if tag >= PageSize {
		return uint64(tag - headerSize)
	}
	return uint64(tag)
}

// Stats returns the counters with FreeLength recomputed.
func (f *FreeList) Stats() Stats {
	f.locker.Lock()
	defer f.locker.Unlock()
	s := f.stats
	s.FreeLength = f.length()
	return s
}

// DumpStats writes the statistics report to w.
func (f *FreeList) DumpStats(w io.Writer) error {
	return f.Stats().Dump(w)
}

// PrintStats writes the statistics report to stderr.
func (f *FreeList) PrintStats() {
	_ = f.DumpStats(os.Stderr)
}

// Walk calls fn for every free node in address order until fn returns false.
// fn runs under the free list lock and must not call back into f.
func (f *FreeList) Walk(fn func(addr, size uint64) bool) {
	f.locker.Lock()
	defer f.locker.Unlock()
	for n := nodeAt(f.head); n != nil; n = nodeAt(n.next) {
		if !fn(uint64(n.addr()), uint64(n.size)) {
			return
		}
	}
}

func (f *FreeList) move(ptr unsafe.Pointer, size, old uint64) (unsafe.Pointer, error) {
	dst, err := f.Allocate(size)
	if err != nil {
		return nil, err
	}
	memmove(dst, ptr, uintptr(min(old, size)))
	f.Free(ptr)
	return dst, nil
}

// allocSmall runs first fit over the list, mapping one more page when no node
// can hold ext. Caller holds the lock.
func (f *FreeList) allocSmall(ext uintptr) (unsafe.Pointer, error) {
	if f.head == 0 {
		if _, _, err := f.grow(); err != nil {
			return nil, err
		}
	}

	var prev *freeNode
	for cur := nodeAt(f.head); cur != nil; prev, cur = cur, nodeAt(cur.next) {
		if ptr, ok := f.carve(prev, cur, ext); ok {
			return ptr, nil
		}
	}

	prev, node, err := f.grow()
	if err != nil {
		return nil, err
	}
	ptr, ok := f.carve(prev, node, ext)
	if !ok {
		panic(errors.AssertionFailedf("fresh page cannot hold %d bytes", ext))
	}
	// the fresh page may sit right next to existing nodes
	f.coalesce()
	return ptr, nil
}

// carve takes ext bytes from the front of cur. The tail is split off as a new
// node when it can host one, otherwise cur is consumed whole so no
// unreclaimable sliver stays in the list.
func (f *FreeList) carve(prev, cur *freeNode, ext uintptr) (unsafe.Pointer, bool) {
	if cur.size < ext {
		return nil, false
	}

	addr := cur.addr()
	leftover := cur.size - ext
	if leftover >= sizeOfFreeNode {
		rest := nodeAt(addr + ext)
		rest.reset(leftover, cur.next)
		f.link(prev, rest.addr())
		stamp(addr, ext-headerSize)
		return payload(addr), true
	}

	tag := cur.size - headerSize
	if tag >= PageSize {
		// a merged run of pages; consuming it would read as a mapped block
		return nil, false
	}
	f.link(prev, cur.next)
	stamp(addr, tag)
	return payload(addr), true
}

// grow maps one page and inserts it into the list as a single node.
func (f *FreeList) grow() (prev, node *freeNode, err error) {
	base, err := f.source.Map(PageSize)
	if err != nil {
		f.logger.Error("map free list page failed", slog.Any("error", err))
		return nil, nil, outOfMemory(err, PageSize)
	}
	f.stats.PagesMapped++
	node = nodeAt(uintptr(base))
	node.reset(PageSize, 0)
	prev = f.insert(node)
	f.logger.Debug("mapped free list page", slog.Uint64("addr", uint64(node.addr())))
	return prev, node, nil
}

// insert splices node in front of the first node with a higher address and
// returns its new predecessor.
func (f *FreeList) insert(node *freeNode) *freeNode {
	var prev *freeNode
	cur := nodeAt(f.head)
	for cur != nil && cur.addr() < node.addr() {
		prev, cur = cur, nodeAt(cur.next)
	}
	node.next = 0
	if cur != nil {
		node.next = cur.addr()
	}
	f.link(prev, node.addr())
	return prev
}

func (f *FreeList) link(prev *freeNode, next uintptr) {
	if prev == nil {
		f.head = next
		return
	}
	prev.next = next
}

// coalesce merges forward while the next node starts where the current one
// ends, until no adjacent pair is left.
func (f *FreeList) coalesce() {
	cur := nodeAt(f.head)
	for cur != nil && cur.next != 0 {
		next := nodeAt(cur.next)
		if next.addr() <= cur.addr() {
			panic(errors.AssertionFailedf("free list out of order: %#x before %#x", cur.addr(), next.addr()))
		}
		if cur.end() == next.addr() {
			cur.size += next.size
			cur.next = next.next
			continue
		}
		cur = next
	}
}

func (f *FreeList) length() int64 {
	var n int64
	for cur := nodeAt(f.head); cur != nil; cur = nodeAt(cur.next) {
		n++
	}
	return n
}
