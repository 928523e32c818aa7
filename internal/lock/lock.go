// Package lock serialises the "read history, decide, commit, append" section
// of a booking run.
package lock

import (
	"context"
)

// Locker acquires the ledger lock. The returned release func must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context) (release func(), err error)
}

// Mutex is an in-process Locker. It honours ctx while waiting.
type Mutex struct {
	ch chan struct{}
}

func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

func (m *Mutex) Lock(ctx context.Context) (func(), error) {
	select {
	case m.ch <- struct{}{}:
		return func() { <-m.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
