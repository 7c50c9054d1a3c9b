package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"liquidity-event-evaluator/internal/decision"
	"liquidity-event-evaluator/internal/storage"
)

// DefaultDecisionCapacity bounds a store created with a non-positive capacity.
const DefaultDecisionCapacity = 1000

// DecisionStore is an in-memory implementation of storage.DecisionStore.
// It keeps the most recent capacity decisions; inserting past capacity
// evicts the oldest insert.
type DecisionStore struct {
	mu       sync.RWMutex
	data     map[uuid.UUID]*decision.Decision
	order    []uuid.UUID // insertion order, oldest first
	capacity int
}

// NewDecisionStore creates a new in-memory decision store holding at most
// capacity decisions. Default: DefaultDecisionCapacity.
func NewDecisionStore(capacity int) *DecisionStore {
	if capacity <= 0 {
		capacity = DefaultDecisionCapacity
	}
	return &DecisionStore{
		data:     make(map[uuid.UUID]*decision.Decision),
		capacity: capacity,
	}
}

// Insert adds a new decision, evicting the oldest when full.
// Returns ErrDuplicateKey if the id is still held.
func (s *DecisionStore) Insert(_ context.Context, d *decision.Decision) error {
	if err := d.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[d.ID] = copyDecision(d)
	s.order = append(s.order, d.ID)
	for len(s.order) > s.capacity {
		delete(s.data, s.order[0])
		s.order[0] = uuid.Nil
		s.order = s.order[1:]
	}
	return nil
}

// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) GetByID(_ context.Context, id uuid.UUID) (*decision.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyDecision(d), nil
}

// GetByPool retrieves every decision for a pool.
func (s *DecisionStore) GetByPool(_ context.Context, pool common.Address) ([]*decision.Decision, error) {
	return s.filter(func(d *decision.Decision) bool { return d.Event.Pool == pool }), nil
}

// List retrieves decisions with outcome, or all when outcome is empty.
func (s *DecisionStore) List(_ context.Context, outcome decision.Outcome) ([]*decision.Decision, error) {
	return s.filter(func(d *decision.Decision) bool { return outcome == "" || d.Outcome == outcome }), nil
}

// Cap returns the maximum number of decisions held.
func (s *DecisionStore) Cap() int {
	return s.capacity
}

// Len returns the number of stored decisions.
func (s *DecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *DecisionStore) filter(keep func(*decision.Decision) bool) []*decision.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*decision.Decision
	for _, id := range s.order {
		if d := s.data[id]; keep(d) {
			result = append(result, copyDecision(d))
		}
	}

	// Sort by started_at ASC, ties in insertion order
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func copyDecision(d *decision.Decision) *decision.Decision {
	cp := *d
	cp.Checks = append(cp.Checks[:0:0], d.Checks...)
	return &cp
}

// Verify interface compliance at compile time.
var _ storage.DecisionStore = (*DecisionStore)(nil)
