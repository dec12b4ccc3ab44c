package session

import (
	"sync"

	"github.com/backkem/keylink/pkg/crypto"
)

// Table holds the session contexts of both halves on the receiving side.
// It is safe for concurrent use; the contexts it returns are not.
type Table struct {
	contexts map[Half]*Context

	mu sync.RWMutex
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{
		contexts: make(map[Half]*Context),
	}
}

// DeriveTable derives contexts for both halves from one root secret.
// config.Half is ignored. Both contexts share one block cipher adapter.
func DeriveTable(config Config) (*Table, error) {
	if config.ECB == nil {
		config.ECB = crypto.NewECB(crypto.ECBConfig{
			Primitive: config.Primitive,
			Timeout:   config.ECBTimeout,
		})
	}

	t := NewTable()
	for _, half := range Halves {
		config.Half = half
		ctx, err := DeriveWithConfig(config)
		if err != nil {
			t.Clear()
			return nil, err
		}
		if err := t.Add(ctx); err != nil {
			ctx.Destroy()
			t.Clear()
			return nil, err
		}
	}
	return t, nil
}

// Add adds a session context to the table.
func (t *Table) Add(ctx *Context) error {
	if ctx == nil || !ctx.half.IsValid() {
		return ErrInvalidHalf
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.contexts[ctx.half]; exists {
		return ErrDuplicateSession
	}
	t.contexts[ctx.half] = ctx
	return nil
}

// Find looks up the context of a half.
func (t *Table) Find(half Half) (*Context, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ctx, ok := t.contexts[half]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctx, nil
}

// Remove destroys and removes the context of a half.
// No error is returned if the half has no context.
func (t *Table) Remove(half Half) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ctx, ok := t.contexts[half]; ok {
		ctx.Destroy()
		delete(t.contexts, half)
	}
}

// Count returns the number of contexts in the table.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.contexts)
}

// Clear destroys and removes every context.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ctx := range t.contexts {
		ctx.Destroy()
	}
	t.contexts = make(map[Half]*Context)
}
