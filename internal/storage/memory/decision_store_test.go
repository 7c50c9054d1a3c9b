package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"liquidity-event-evaluator/internal/decision"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/filter"
	"liquidity-event-evaluator/internal/storage"
)

var (
	poolA = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	poolB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	t0    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func accepted(pool common.Address, at time.Time) *decision.Decision {
	return decision.New("cand-"+pool.Hex(), domain.PairEvent{Pool: pool}, at).Accept(at.Add(time.Second))
}

func rejected(pool common.Address, at time.Time) *decision.Decision {
	check := filter.Result{Name: "min_liquidity_usd", Threshold: ">= 10000", Actual: "1.00"}
	return decision.New("cand-"+pool.Hex(), domain.PairEvent{Pool: pool}, at).Reject(decision.StageLiquidity, check, at)
}

func TestDecisionStore_InsertAndGet(t *testing.T) {
	store := NewDecisionStore(0)
	ctx := context.Background()

	d := accepted(poolA, t0)
	d.AddChecks(filter.Result{Name: "asset_membership", Pass: true})

	if err := store.Insert(ctx, d); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Outcome != decision.OutcomeAccepted {
		t.Errorf("Outcome mismatch: got %s, want %s", got.Outcome, decision.OutcomeAccepted)
	}
	if got.Event.Pool != poolA {
		t.Errorf("Pool mismatch: got %s, want %s", got.Event.Pool.Hex(), poolA.Hex())
	}

	// Mutating the returned copy must not affect the store
	got.Checks[0].Name = "mutated"
	again, _ := store.GetByID(ctx, d.ID)
	if again.Checks[0].Name != "asset_membership" {
		t.Errorf("store was mutated through a returned copy: %s", again.Checks[0].Name)
	}
}

func TestDecisionStore_DuplicateKey(t *testing.T) {
	store := NewDecisionStore(0)
	ctx := context.Background()

	d := accepted(poolA, t0)
	if err := store.Insert(ctx, d); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, d); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestDecisionStore_InvalidInput(t *testing.T) {
	store := NewDecisionStore(0)
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	pending := decision.New("cand", domain.PairEvent{Pool: poolA}, t0)
	if err := store.Insert(ctx, pending); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for non-terminal decision, got %v", err)
	}
}

func TestDecisionStore_NotFound(t *testing.T) {
	store := NewDecisionStore(0)

	_, err := store.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDecisionStore_GetByPoolAndList(t *testing.T) {
	store := NewDecisionStore(0)
	ctx := context.Background()

	// Insert out of order
	for _, d := range []*decision.Decision{
		rejected(poolA, t0.Add(2*time.Minute)),
		accepted(poolB, t0.Add(time.Minute)),
		accepted(poolA, t0),
	} {
		if err := store.Insert(ctx, d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	byPool, err := store.GetByPool(ctx, poolA)
	if err != nil {
		t.Fatalf("GetByPool failed: %v", err)
	}
	if len(byPool) != 2 {
		t.Fatalf("Expected 2 decisions for pool A, got %d", len(byPool))
	}
	if !byPool[0].StartedAt.Before(byPool[1].StartedAt) {
		t.Error("Expected decisions sorted by StartedAt ASC")
	}

	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("Expected 3 decisions, got %d", len(all))
	}

	acceptedOnly, _ := store.List(ctx, decision.OutcomeAccepted)
	if len(acceptedOnly) != 2 {
		t.Errorf("Expected 2 accepted decisions, got %d", len(acceptedOnly))
	}

	failed, _ := store.List(ctx, decision.OutcomeFailed)
	if len(failed) != 0 {
		t.Errorf("Expected no failed decisions, got %d", len(failed))
	}

	if store.Len() != 3 {
		t.Errorf("Len mismatch: got %d, want 3", store.Len())
	}
}

func TestDecisionStore_ConcurrentInsert(t *testing.T) {
	store := NewDecisionStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Insert(ctx, accepted(poolA, t0.Add(time.Duration(i)*time.Second))); err != nil {
				t.Errorf("Insert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != 50 {
		t.Errorf("Expected 50 decisions, got %d", store.Len())
	}
}

func TestDecisionStore_EvictsOldestInsert(t *testing.T) {
	store := NewDecisionStore(3)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		d := accepted(poolA, t0.Add(time.Duration(i)*time.Minute))
		if err := store.Insert(ctx, d); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		ids = append(ids, d.ID)
	}

	if store.Len() != 3 {
		t.Fatalf("Len mismatch: got %d, want 3", store.Len())
	}
	for _, id := range ids[:2] {
		if _, err := store.GetByID(ctx, id); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected %s to be evicted, got %v", id, err)
		}
	}

	all, _ := store.List(ctx, "")
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[4] {
		t.Errorf("Expected the three newest decisions in order")
	}
}

func TestDecisionStore_DefaultCapacity(t *testing.T) {
	if got := NewDecisionStore(-1).Cap(); got != DefaultDecisionCapacity {
		t.Errorf("Cap mismatch: got %d, want %d", got, DefaultDecisionCapacity)
	}
}
