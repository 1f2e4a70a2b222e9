// Package keeperlock serializes ledger-mutating work per signing identity.
package keeperlock

import (
	"context"
	"errors"
	"sync"
)

var ErrLockLost = errors.New("identity lock lost")

// Locker grants exclusive use of a signing identity. The returned context
// derives from ctx and is cancelled with ErrLockLost as its cause when the
// lock expires under the holder. The release func is safe to call twice.
type Locker interface {
	Acquire(ctx context.Context, identity string) (held context.Context, release func(), err error)
}

// Local is an in-process Locker. The zero value is ready to use.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{}
}

// Acquire never loses the lock, so the returned context is ctx itself.
func (l *Local) Acquire(ctx context.Context, identity string) (context.Context, func(), error) {
	slot := l.slot(identity)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx, nil, ctx.Err()
	}
	var once sync.Once
	return ctx, func() {
		once.Do(func() { <-slot })
	}, nil
}

func (l *Local) slot(identity string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = map[string]chan struct{}{}
	}
	ch, ok := l.slots[identity]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[identity] = ch
	}
	return ch
}
