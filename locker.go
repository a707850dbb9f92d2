package hmalloc

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

type Locker interface {
	sync.Locker
}

// spinYield is how many failed attempts the spin lock makes between yields.
const spinYield = 16

// spinLocker is the optional free list lock. A contended Lock retries its CAS
// and hands the processor back every spinYield misses instead of parking the
// goroutine. Holders walk and relink nodes and map at most one page.
type spinLocker struct {
	held atomic.Bool
}

func (l *spinLocker) Lock() {
	for miss := 1; !l.held.CompareAndSwap(false, true); miss++ {
		if miss%spinYield == 0 {
			runtime.Gosched()
		}
	}
}

func (l *spinLocker) Unlock() {
	if !l.held.CompareAndSwap(true, false) {
		panic(errors.AssertionFailedf("free list lock released while not held"))
	}
}

// NewSpinLocker returns the spin lock used when Config.SpinLock is set.
func NewSpinLocker() Locker {
	return &spinLocker{}
}
