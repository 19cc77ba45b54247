// Package resetledger records which reset tokens have been redeemed so that
// each one can change a password at most once.
package resetledger

import (
	"context"
	"sync"
	"time"
)

// Ledger marks token IDs as consumed.
//
// Consume returns true the first time id is seen and false on every later
// call until the entry expires at until (the token's own expiry, after which
// the token is rejected anyway).
//
// Release forgets id so a token whose redemption failed can be used again.
type Ledger interface {
	Consume(ctx context.Context, id string, until time.Time) (bool, error)
	Release(ctx context.Context, id string) error
}

// Memory is a process-local Ledger.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Consume(_ context.Context, id string, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, k)
		}
	}

	if _, ok := m.entries[id]; ok {
		return false, nil
	}
	m.entries[id] = until
	return true, nil
}

func (m *Memory) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}
