package hmalloc

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"
)

const registryShards = 16

// registry maps OS thread ids to their bin tables. Only the lookup is
// locked; the tables themselves never are.
//
// Thread ids are recycled by the OS. A new thread that inherits an id also
// inherits the dead thread's table, which is safe because the old owner is
// gone.
type registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu      sync.Mutex
	threads *swiss.Map[int, *Thread]
}

func (r *registry) init() {
	for i := range r.shards {
		r.shards[i].threads = swiss.NewMap[int, *Thread](8)
	}
}

func (r *registry) get(tid int, create func() *Thread) *Thread {
	s := r.shard(tid)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads.Get(tid)
	if !ok {
		t = create()
		s.threads.Put(tid, t)
	}
	return t
}

func (r *registry) len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += s.threads.Count()
		s.mu.Unlock()
	}
	return n
}

func (r *registry) shard(tid int) *registryShard {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(tid))
	return &r.shards[xxhash.Sum64(buf[:])%registryShards]
}
