package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// IntakeProgress is the position of the last PairCreated log handed to the pipeline.
type IntakeProgress struct {
	Block    uint64
	LogIndex uint
}

// IntakeProgressStore tracks intake state so a resubscription can resume
// from where the previous subscription stopped without delivering a pool twice.
type IntakeProgressStore interface {
	// GetLastProcessed returns the last delivered position.
	// Returns ErrNotFound if nothing has been delivered yet.
	GetLastProcessed(ctx context.Context) (*IntakeProgress, error)

	// SetLastProcessed saves the last delivered position.
	SetLastProcessed(ctx context.Context, progress *IntakeProgress) error

	// IsPoolSeen checks if a pool has been delivered.
	IsPoolSeen(ctx context.Context, pool common.Address) (bool, error)

	// MarkPoolSeen records that a pool has been delivered.
	MarkPoolSeen(ctx context.Context, pool common.Address) error
}
