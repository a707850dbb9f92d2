package hmalloc

import (
	"github.com/cockroachdb/errors"

	"github.com/leslie-fei/hmalloc/gom"
	"github.com/leslie-fei/hmalloc/mmap"
	"github.com/leslie-fei/hmalloc/shm"
)

var (
	_ Allocator = (*FreeList)(nil)
	_ Allocator = (*Bins)(nil)
	_ Allocator = (*Thread)(nil)
)

// New builds the allocator described by c. A nil c means DefaultConfig.
func New(c *Config) (Allocator, error) {
	config := mergeConfig(c)

	src, err := NewPageSource(config.MemoryType)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(config.Logger)}
	if config.SpinLock {
		opts = append(opts, WithLocker(NewSpinLocker()))
	}

	switch config.Strategy {
	case FreeListStrategy:
		return NewFreeList(src, opts...), nil
	case BinStrategy:
		return NewBins(src, opts...), nil
	default:
		return nil, errors.Newf("Strategy: %d not support", config.Strategy)
	}
}

// NewPageSource returns the page source for typ.
func NewPageSource(typ MemoryType) (PageSource, error) {
	switch typ {
	case GO:
		return gom.NewSource(), nil
	case MMAP:
		return mmap.NewSource(), nil
	case SHM:
		return shm.NewSource(), nil
	default:
		return nil, errors.Newf("MemoryType: %d not support", typ)
	}
}
