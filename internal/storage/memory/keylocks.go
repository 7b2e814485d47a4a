package memory

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

const keyLockStripes = 256

var hashers = sync.Pool{New: func() any { return murmur3.New32() }}

func stripe(id string) uint32 {
	h := hashers.Get().(hash.Hash32)
	h.Reset()
	h.Write([]byte(id))
	sum := h.Sum32()
	hashers.Put(h)
	return sum % keyLockStripes
}

// KeyLocks serializes transitions of a session between memory and
// storage: on-demand reload, passivation and destruction of the same id
// never interleave. Ids share one of a fixed set of striped mutexes, so
// unrelated ids may occasionally contend but never deadlock.
type KeyLocks struct {
	stripes [keyLockStripes]sync.Mutex
}

// Lock locks the stripe of id and returns its unlock function.
func (k *KeyLocks) Lock(id string) (unlock func()) {
	m := &k.stripes[stripe(id)]
	m.Lock()
	return m.Unlock
}
