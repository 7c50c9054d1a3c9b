package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidity-event-evaluator/internal/storage"
)

// IntakeProgressStore is an in-memory implementation of storage.IntakeProgressStore.
type IntakeProgressStore struct {
	mu        sync.RWMutex
	progress  *storage.IntakeProgress
	seenPools map[common.Address]bool
}

// NewIntakeProgressStore creates a new in-memory intake progress store.
func NewIntakeProgressStore() *IntakeProgressStore {
	return &IntakeProgressStore{
		seenPools: make(map[common.Address]bool),
	}
}

// GetLastProcessed returns the last delivered position.
func (s *IntakeProgressStore) GetLastProcessed(_ context.Context) (*storage.IntakeProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}
	p := *s.progress
	return &p, nil
}

// SetLastProcessed saves the last delivered position.
func (s *IntakeProgressStore) SetLastProcessed(_ context.Context, progress *storage.IntakeProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *progress
	s.progress = &p
	return nil
}

// IsPoolSeen checks if a pool has been delivered.
func (s *IntakeProgressStore) IsPoolSeen(_ context.Context, pool common.Address) (bool, error) {
	if pool == (common.Address{}) {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seenPools[pool], nil
}

// MarkPoolSeen records that a pool has been delivered.
func (s *IntakeProgressStore) MarkPoolSeen(_ context.Context, pool common.Address) error {
	if pool == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seenPools[pool] = true
	return nil
}

var _ storage.IntakeProgressStore = (*IntakeProgressStore)(nil)
