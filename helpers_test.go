package hmalloc

import (
	"sort"
	"sync"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/leslie-fei/hmalloc/mmap"
)

// countingSource records every mapping made through it. It maps off the Go
// heap so the suite runs under -race with checkptr enabled.
type countingSource struct {
	src     PageSource
	mu      sync.Mutex
	maps    int
	unmaps  int
	regions map[uintptr]uint64
	fail    bool
}

func newCountingSource() *countingSource {
	return &countingSource{src: mmap.NewSource(), regions: make(map[uintptr]uint64)}
}

func (c *countingSource) Map(length uint64) (unsafe.Pointer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("no memory")
	}
	ptr, err := c.src.Map(length)
	if err != nil {
		return nil, err
	}
	c.maps++
	c.regions[uintptr(ptr)] = length
	return ptr, nil
}

func (c *countingSource) Unmap(ptr unsafe.Pointer, length uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.src.Unmap(ptr, length); err != nil {
		return err
	}
	c.unmaps++
	delete(c.regions, uintptr(ptr))
	return nil
}

func (c *countingSource) counts() (maps, unmaps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maps, c.unmaps
}

func (c *countingSource) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

// contains reports whether [ptr, ptr+n) lies inside one mapped region.
func (c *countingSource) contains(ptr unsafe.Pointer, n uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := uintptr(ptr)
	for base, length := range c.regions {
		if p >= base && p+uintptr(n) <= base+uintptr(length) {
			return true
		}
	}
	return false
}

type span struct {
	addr, size uint64
}

func freeNodes(f *FreeList) []span {
	var nodes []span
	f.Walk(func(addr, size uint64) bool {
		nodes = append(nodes, span{addr, size})
		return true
	})
	return nodes
}

// requireOrdered checks ascending addresses with a gap between every pair.
func requireOrdered(t *testing.T, f *FreeList) {
	t.Helper()
	nodes := freeNodes(f)
	for i := 1; i < len(nodes); i++ {
		prev := nodes[i-1]
		require.Greater(t, nodes[i].addr, prev.addr+prev.size, "nodes %d and %d touch or overlap", i-1, i)
	}
}

func requireDisjoint(t *testing.T, blocks []span) {
	t.Helper()
	sorted := append([]span(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].addr < sorted[j].addr })
	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1].addr+sorted[i-1].size, sorted[i].addr)
	}
}

func fill(ptr unsafe.Pointer, n uint64, b byte) {
	buf := Bytes(ptr, n)
	for i := range buf {
		buf[i] = b
	}
}

func requireFilled(t *testing.T, ptr unsafe.Pointer, n uint64, b byte) {
	t.Helper()
	for i, v := range Bytes(ptr, n) {
		if v != b {
			require.Failf(t, "block corrupted", "byte %d is %d, want %d", i, v, b)
		}
	}
}
