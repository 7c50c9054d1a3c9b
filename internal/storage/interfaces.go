package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"liquidity-event-evaluator/internal/decision"
)

// DecisionStore keeps the decision of every evaluated candidate.
type DecisionStore interface {
	// Insert adds a terminal decision. Returns ErrDuplicateKey if the id exists
	// and ErrInvalidInput if the decision does not validate.
	Insert(ctx context.Context, d *decision.Decision) error

	// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id uuid.UUID) (*decision.Decision, error)

	// GetByPool retrieves every decision for a pool, ordered by StartedAt ASC.
	GetByPool(ctx context.Context, pool common.Address) ([]*decision.Decision, error)

	// List retrieves decisions with the given outcome, or all when outcome
	// is empty, ordered by StartedAt ASC.
	List(ctx context.Context, outcome decision.Outcome) ([]*decision.Decision, error)
}
