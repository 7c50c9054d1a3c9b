// Package ingestion turns factory PairCreated logs into pair events.
package ingestion

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/domain"
)

// LogSource provides raw logs from a node.
type LogSource interface {
	// FilterLogs returns historical logs matching q.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	// SubscribeFilterLogs streams new logs matching q into ch.
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	// BlockNumber returns the head block.
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ LogSource = chain.Backend(nil)

// PairSource provides pair events in arrival order.
type PairSource interface {
	// Subscribe returns a channel of pair events. The channel is closed when
	// the context is cancelled.
	Subscribe(ctx context.Context) (<-chan domain.PairEvent, error)
}
