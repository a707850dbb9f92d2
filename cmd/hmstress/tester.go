package main

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/leslie-fei/hmalloc"
)

// block is one live allocation and the byte its owner filled it with.
type block struct {
	ptr  unsafe.Pointer
	size uint64
	mark byte
}

func run(a hmalloc.Allocator, workers, ops int, maxSize uint64) (int64, error) {
	var (
		wg    sync.WaitGroup
		total int64
		once  sync.Once
		first error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			n, err := worker(a, id, ops, maxSize)
			atomic.AddInt64(&total, n)
			if err != nil {
				once.Do(func() { first = err })
			}
		}(w)
	}
	wg.Wait()
	return total, first
}

func worker(a hmalloc.Allocator, id, ops int, maxSize uint64) (int64, error) {
	rnd := rand.New(rand.NewSource(int64(id)))
	live := make([]block, 0, 256)
	defer func() {
		for _, b := range live {
			a.Free(b.ptr)
		}
	}()

	var done int64
	for i := 0; i < ops; i++ {
		switch op := rnd.Intn(10); {
		case op < 5 || len(live) == 0:
			size := uint64(rnd.Int63n(int64(maxSize) + 1))
			ptr, err := a.Allocate(size)
			if err != nil {
				return done, err
			}
			b := block{ptr: ptr, size: size, mark: byte(rnd.Intn(256))}
			fill(b)
			live = append(live, b)
		case op < 8:
			j := rnd.Intn(len(live))
			if err := verify(live[j]); err != nil {
				return done, err
			}
			a.Free(live[j].ptr)
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		default:
			j := rnd.Intn(len(live))
			b := live[j]
			if err := verify(b); err != nil {
				return done, err
			}
			size := uint64(rnd.Int63n(int64(maxSize) + 1))
			ptr, err := a.Reallocate(b.ptr, size)
			if err != nil {
				return done, err
			}
			b.ptr, b.size = ptr, min(b.size, size)
			if err := verify(b); err != nil {
				return done, err
			}
			b.size = size
			fill(b)
			live[j] = b
		}
		done++
	}
	return done, nil
}

func fill(b block) {
	buf := hmalloc.Bytes(b.ptr, b.size)
	for i := range buf {
		buf[i] = b.mark
	}
}

func verify(b block) error {
	for i, v := range hmalloc.Bytes(b.ptr, b.size) {
		if v != b.mark {
			return fmt.Errorf("block %p byte %d is %#x, want %#x", b.ptr, i, v, b.mark)
		}
	}
	return nil
}
