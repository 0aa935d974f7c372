package market

import (
	"sync"

	"github.com/google/uuid"
)

// lockTable serializes mutating operations per market. Reads never take
// this lock. The engine performs no external calls while holding a
// lock: outbound transfers are written to the outbox and executed by a
// separate pass, so reentrancy into a market's mutating surface cannot
// happen.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (t *lockTable) acquire(id uuid.UUID) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
