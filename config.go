package hmalloc

import (
	"io"
	"sync"

	"golang.org/x/exp/slog"
)

type MemoryType int

const (
	GO   MemoryType = 1
	MMAP MemoryType = 2
	SHM  MemoryType = 3
)

type Strategy int

const (
	// FreeListStrategy one address ordered free list, coalescing, one global lock
	FreeListStrategy Strategy = 1
	// BinStrategy power of two size classes, one table per OS thread, no lock
	BinStrategy Strategy = 2
)

type Config struct {
	// allocation strategy in FreeListStrategy BinStrategy
	Strategy Strategy
	// page source in GO MMAP SHM
	MemoryType MemoryType
	// guard the free list with a CAS spin lock instead of sync.Mutex
	SpinLock bool
	// receives page level events, nil discards
	Logger *slog.Logger
}

func DefaultConfig() *Config {
	return &Config{
		Strategy:   FreeListStrategy,
		MemoryType: MMAP,
	}
}

func mergeConfig(c *Config) *Config {
	config := DefaultConfig()
	if c == nil {
		return config
	}
	if c.Strategy != 0 {
		config.Strategy = c.Strategy
	}
	if c.MemoryType != 0 {
		config.MemoryType = c.MemoryType
	}
	config.SpinLock = c.SpinLock
	config.Logger = c.Logger
	return config
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type options struct {
	logger *slog.Logger
	locker Locker
}

// Option tunes NewFreeList and NewBins.
type Option func(o *options)

// WithLogger routes page level events to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLocker replaces the free list's global lock. Bins ignore it.
func WithLocker(locker Locker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = discardLogger()
	}
	if o.locker == nil {
		o.locker = &sync.Mutex{}
	}
	return o
}
