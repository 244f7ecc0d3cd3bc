package bidding

import (
	"context"
	"sync"
	"time"
)

// lockTable hands out one exclusive lock per auction ID so that bid
// attempts on the same auction serialize while unrelated auctions proceed
// independently. Entries are created lazily and removed when the last
// waiter releases, keeping the table bounded by live contention rather
// than by the number of auctions ever seen.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{} // capacity 1
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*entry)}
}

// acquire blocks until the auction's lock is granted, the wait bound
// elapses, or ctx is cancelled. On success the returned release function
// must be called exactly once; holding no other resource while holding
// this lock keeps the scheme deadlock-free.
func (t *lockTable) acquire(ctx context.Context, auctionID string, wait time.Duration) (func(), error) {
	t.mu.Lock()
	e, ok := t.locks[auctionID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		t.locks[auctionID] = e
	}
	e.refs++
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			t.put(auctionID, e)
		}, nil
	case <-timer.C:
		t.put(auctionID, e)
		return nil, ErrContention
	case <-ctx.Done():
		t.put(auctionID, e)
		return nil, ErrContention
	}
}

func (t *lockTable) put(auctionID string, e *entry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, auctionID)
	}
	t.mu.Unlock()
}
