// Package inproc provides a tx.Manager for stores without real transactions
// (the in-memory store and tests). Outermost transactions are serialized, which
// gives a read-then-write sequence inside fn the isolation a row lock would.
package inproc

import (
	"context"
	"sync"

	"activatable/internal/core/tx"
)

var _ tx.ReadOnlyManager = (*Manager)(nil)

type txKey struct{}

type state struct {
	mu        sync.Mutex
	callbacks []func(ctx context.Context)
}

// Manager mimics transaction scoping: nested calls join the outer transaction and
// after-commit callbacks run only when the outermost fn returns nil.
type Manager struct {
	serial sync.Mutex

	mu         sync.Mutex
	Begun      int
	Committed  int
	RolledBack int
}

func New() *Manager {
	return &Manager{}
}

func (m *Manager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	m.Begun++
	m.mu.Unlock()

	st := &state{}
	m.serial.Lock()
	err := fn(context.WithValue(ctx, txKey{}, st))
	m.serial.Unlock()
	if err != nil {
		m.mu.Lock()
		m.RolledBack++
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.Committed++
	m.mu.Unlock()

	st.mu.Lock()
	cbs := st.callbacks
	st.callbacks = nil
	st.mu.Unlock()
	// Callbacks may open transactions of their own.
	for _, cb := range cbs {
		cb(ctx)
	}
	return nil
}

func (m *Manager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

func (m *Manager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		st.mu.Lock()
		st.callbacks = append(st.callbacks, fn)
		st.mu.Unlock()
		return
	}
	fn(ctx)
}

// InTransaction reports whether ctx carries a transaction started by a Manager.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*state)
	return ok
}
