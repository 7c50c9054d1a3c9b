package ingestion_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/chain/stub"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/ingestion"
	"liquidity-event-evaluator/internal/observability"
	"liquidity-event-evaluator/internal/storage"
	"liquidity-event-evaluator/internal/storage/memory"
)

var (
	tokA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokB = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

func poolAddr(i int64) common.Address {
	return common.BigToAddress(big.NewInt(0xb00 + i))
}

func pairLog(i int64, block uint64) types.Log {
	return stub.PairCreatedLog(chain.MainnetFactoryV2, tokA, chain.MainnetWETH, poolAddr(i), i, block)
}

func newSource(backend *stub.Chain, progress storage.IntakeProgressStore) (*ingestion.FactorySource, *observability.Metrics) {
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "")
	return ingestion.NewFactorySource(ingestion.FactorySourceOptions{
		Logs:       backend,
		Progress:   progress,
		BatchSize:  10,
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		Metrics:    metrics,
	}), metrics
}

func receive(t *testing.T, ch <-chan domain.PairEvent) domain.PairEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.PairEvent{}
}

func assertNoEvent(t *testing.T, ch <-chan domain.PairEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for pool %s", ev.Pool.Hex())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFactorySource_DeliversInArrivalOrder(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	source, metrics := newSource(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := source.Subscribe(ctx)
	require.NoError(t, err)

	backend.Emit(pairLog(1, 100))
	backend.Emit(pairLog(2, 101))

	first := receive(t, events)
	second := receive(t, events)
	assert.Equal(t, poolAddr(1), first.Pool)
	assert.Equal(t, tokA, first.Token0)
	assert.Equal(t, chain.MainnetWETH, first.Token1)
	assert.Equal(t, uint64(100), first.BlockNumber)
	assert.Equal(t, poolAddr(2), second.Pool)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsReceived))
}

func TestFactorySource_SkipsDuplicatesRemovedAndForeignLogs(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	source, _ := newSource(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := source.Subscribe(ctx)
	require.NoError(t, err)

	removed := pairLog(3, 100)
	removed.Removed = true
	foreign := types.Log{Address: chain.MainnetFactoryV2, Topics: []common.Hash{common.HexToHash("0x01")}}

	backend.Emit(pairLog(1, 100))
	backend.Emit(pairLog(1, 100))
	backend.Emit(removed)
	backend.Emit(foreign)
	backend.Emit(pairLog(2, 101))

	assert.Equal(t, poolAddr(1), receive(t, events).Pool)
	assert.Equal(t, poolAddr(2), receive(t, events).Pool)
	assertNoEvent(t, events)
}

func TestFactorySource_ResubscribesAfterError(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	progress := memory.NewIntakeProgressStore()
	source, metrics := newSource(backend, progress)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := source.Subscribe(ctx)
	require.NoError(t, err)

	backend.Emit(pairLog(1, 100))
	receive(t, events)

	backend.FailSubscribes = 2
	backend.FailSubscription(errors.New("websocket closed"))

	require.Eventually(t, func() bool { return backend.Subscribes() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Resubscriptions))

	// The replayed log of the resume block is not delivered twice
	backend.Emit(pairLog(1, 100))
	backend.Emit(pairLog(2, 102))
	assert.Equal(t, poolAddr(2), receive(t, events).Pool)

	p, err := progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), p.Block)
	assert.Equal(t, uint(2), p.LogIndex)
}

func TestFactorySource_ReplaysGapAfterResubscribe(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	source, _ := newSource(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := source.Subscribe(ctx)
	require.NoError(t, err)

	backend.Emit(pairLog(1, 100))
	receive(t, events)

	// Pools created while the subscription was down are only in history
	backend.History = []types.Log{
		pairLog(1, 100),
		pairLog(3, 104),
		pairLog(2, 101),
		pairLog(9, 120), // beyond the head
	}
	backend.SetBlock(105)
	backend.FailSubscription(errors.New("websocket closed"))

	assert.Equal(t, poolAddr(2), receive(t, events).Pool)
	assert.Equal(t, poolAddr(3), receive(t, events).Pool)

	// Live logs overlapping the replayed range are not delivered twice
	backend.Emit(pairLog(3, 104))
	backend.Emit(pairLog(4, 106))
	assert.Equal(t, poolAddr(4), receive(t, events).Pool)
	assertNoEvent(t, events)
}

func TestFactorySource_BackfillRejectsConflictingLogs(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	conflict := pairLog(5, 12)
	conflict.Index = 2
	backend.History = []types.Log{pairLog(2, 12), conflict}
	source, _ := newSource(backend, nil)

	_, err := source.Backfill(context.Background(), 1, 20)
	require.ErrorIs(t, err, ingestion.ErrInvalidOrdering)
	assert.Contains(t, err.Error(), "11..20")
}

func TestFactorySource_InitialSubscribeFailure(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	backend.FailSubscribes = 1
	source, _ := newSource(backend, nil)

	_, err := source.Subscribe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), chain.MainnetFactoryV2.Hex())
}

func TestFactorySource_ClosesOnCancel(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	source, _ := newSource(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := source.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFactorySource_Backfill(t *testing.T) {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	foreign := stub.PairCreatedLog(chain.MainnetFactoryV2, tokA, tokB, poolAddr(9), 9, 15)
	foreign.Topics = foreign.Topics[:1]
	backend.History = []types.Log{
		pairLog(4, 25),
		pairLog(1, 5),
		pairLog(3, 12),
		pairLog(2, 12),
		pairLog(1, 30), // same pool again
		foreign,
		pairLog(7, 99), // outside the range
	}
	source, _ := newSource(backend, nil)

	result, err := source.Backfill(context.Background(), 1, 30)
	require.NoError(t, err)

	pools := make([]common.Address, 0, len(result.Events))
	for _, ev := range result.Events {
		pools = append(pools, ev.Pool)
	}
	assert.Equal(t, []common.Address{poolAddr(1), poolAddr(2), poolAddr(3), poolAddr(4)}, pools)
	assert.Equal(t, 6, result.LogsFetched)
	assert.Equal(t, 1, result.DuplicatesSkipped)
	assert.Equal(t, 1, result.InvalidSkipped)

	// A second backfill of the same range delivers nothing new
	again, err := source.Backfill(context.Background(), 1, 30)
	require.NoError(t, err)
	assert.Empty(t, again.Events)
	assert.Equal(t, 5, again.DuplicatesSkipped)

	_, err = source.Backfill(context.Background(), 10, 9)
	assert.Error(t, err)
}
