// Command hmstress drives an allocator with a random allocate, reallocate and
// free mix from several goroutines, checks every block still holds what its
// owner wrote, and reports the free list statistics.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/exp/slog"

	"github.com/leslie-fei/hmalloc"
)

func main() {
	var (
		strategy string
		memory   string
		workers  int
		ops      int
		maxSize  uint64
		spin     bool
		asJSON   bool
		verbose  bool
	)
	pflag.StringVarP(&strategy, "strategy", "s", "freelist", "allocation strategy: freelist or bins")
	pflag.StringVarP(&memory, "memory", "m", "mmap", "page source: go, mmap or shm")
	pflag.IntVarP(&workers, "workers", "w", 4, "number of worker goroutines")
	pflag.IntVarP(&ops, "ops", "n", 100_000, "operations per worker")
	pflag.Uint64Var(&maxSize, "max-size", 3*hmalloc.PageSize, "largest request in bytes")
	pflag.BoolVar(&spin, "spin", false, "guard the free list with a spin lock")
	pflag.BoolVar(&asJSON, "json", false, "print statistics as JSON on stdout")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "log page level events")
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	config := &hmalloc.Config{SpinLock: spin, Logger: logger}
	switch strategy {
	case "freelist":
		config.Strategy = hmalloc.FreeListStrategy
	case "bins":
		config.Strategy = hmalloc.BinStrategy
	default:
		fail(logger, fmt.Errorf("unknown strategy %q", strategy))
	}
	switch memory {
	case "go":
		config.MemoryType = hmalloc.GO
	case "mmap":
		config.MemoryType = hmalloc.MMAP
	case "shm":
		config.MemoryType = hmalloc.SHM
	default:
		fail(logger, fmt.Errorf("unknown page source %q", memory))
	}

	a, err := hmalloc.New(config)
	if err != nil {
		fail(logger, err)
	}

	start := time.Now()
	total, err := run(a, workers, ops, maxSize)
	if err != nil {
		fail(logger, err)
	}
	elapsed := time.Since(start)
	logger.Info("stress finished",
		slog.String("strategy", strategy),
		slog.String("memory", memory),
		slog.Int64("ops", total),
		slog.Duration("elapsed", elapsed),
		slog.Float64("ops_per_sec", float64(total)/elapsed.Seconds()))

	f, ok := a.(*hmalloc.FreeList)
	if !ok {
		return
	}
	if asJSON {
		data, err := json.Marshal(f.Stats())
		if err != nil {
			fail(logger, err)
		}
		fmt.Println(string(data))
		return
	}
	f.PrintStats()
}

func fail(logger *slog.Logger, err error) {
	logger.Error("hmstress", slog.Any("error", err))
	os.Exit(1)
}
