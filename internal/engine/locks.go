package engine

import (
	"sync"

	"auction_go/internal/domain"
)

// lockTable holds one mutex per item id. It is the only serialization
// primitive in the engine: all callers for the same item are queued on its
// mutex, callers for different items never block one another.
type lockTable struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// register creates the mutex for a new item id. Called once per item,
// alongside item creation.
func (t *lockTable) register(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.locks[itemID]; !ok {
		t.locks[itemID] = &sync.Mutex{}
	}
}

// withLock runs fn with exclusive access to the item's state. The lock is
// released on every exit path, including panics inside fn, so a failed
// mutation can never deadlock the item. An unknown id fails fast with
// ItemNotFound before any blocking.
func (t *lockTable) withLock(itemID string, fn func() error) error {
	t.mu.RLock()
	lock, ok := t.locks[itemID]
	t.mu.RUnlock()
	if !ok {
		return domain.NewItemNotFound(itemID)
	}

	lock.Lock()
	defer lock.Unlock()
	return fn()
}
