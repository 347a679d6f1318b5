package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is wrapped by UnitLocker implementations that give up
// waiting for a unit lock.  Create reports it as a conflict.
var ErrLockTimeout = errors.New("timed out waiting for unit lock")

// UnitLocker serialises the create path of one unit.  The returned
// function releases the lock and is safe to call once.
type UnitLocker interface {
	LockUnit(ctx context.Context, unitID uint64) (unlock func(), err error)
}

// LocalLocker hands out one mutex per unit inside a single process.
// Entries are dropped once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	units map[uint64]*unitLock
}

type unitLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{units: make(map[uint64]*unitLock)}
}

func (l *LocalLocker) LockUnit(ctx context.Context, unitID uint64) (func(), error) {
	l.mu.Lock()
	ul, ok := l.units[unitID]
	if !ok {
		ul = &unitLock{ch: make(chan struct{}, 1)}
		l.units[unitID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(unitID, ul)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ul.ch
			l.release(unitID, ul)
		})
	}, nil
}

func (l *LocalLocker) release(unitID uint64, ul *unitLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.units, unitID)
	}
}
