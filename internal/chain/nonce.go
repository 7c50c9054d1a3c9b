package chain

import (
	"errors"
	"sync"
)

// ErrNotSynced is returned when a transaction parameter is requested before
// the corresponding SyncNonce or SyncFees call.
var ErrNotSynced = errors.New("chain client not synced")

// NonceState is the nonce counter of one wallet. The next nonce is Base + Offset.
type NonceState struct {
	Base   uint64
	Offset uint64
}

// Next returns the nonce the next Allocate call will hand out.
func (s NonceState) Next() uint64 {
	return s.Base + s.Offset
}

// NonceManager hands out nonces for a single wallet.
//
// Allocate is the only mutation point. It is atomic, so two callers never
// receive the same nonce, but it does not order transaction submission:
// callers must send transactions in the order their nonces were allocated.
// Each wallet needs its own manager.
type NonceManager struct {
	mu     sync.Mutex
	state  NonceState
	synced bool
}

// NewNonceManager creates an unsynced manager.
func NewNonceManager() *NonceManager {
	return &NonceManager{}
}

// Reset starts a new session at base with a zero offset.
func (m *NonceManager) Reset(base uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = NonceState{Base: base}
	m.synced = true
}

// Allocate returns Base + Offset and increments Offset.
func (m *NonceManager) Allocate() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.synced {
		return 0, ErrNotSynced
	}
	nonce := m.state.Next()
	m.state.Offset++
	return nonce, nil
}

// State returns a copy of the counter.
func (m *NonceManager) State() NonceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
