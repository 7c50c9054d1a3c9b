package ingestion

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/observability"
	"liquidity-event-evaluator/internal/storage"
	"liquidity-event-evaluator/internal/storage/memory"
)

const (
	defaultBuffer     = 100
	defaultBatchSize  = 2000
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

type verdict int

const (
	accepted verdict = iota
	skippedRemoved
	skippedInvalid
	skippedDuplicate
)

// FactorySource delivers PairCreated events of one factory, live or from history.
// Each pool is delivered at most once per progress store.
type FactorySource struct {
	logs       LogSource
	factory    common.Address
	progress   storage.IntakeProgressStore
	startBlock uint64
	batchSize  uint64
	buffer     int
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// FactorySourceOptions contains configuration for creating a FactorySource.
type FactorySourceOptions struct {
	Logs       LogSource
	Factory    common.Address              // Default: mainnet V2 factory
	Progress   storage.IntakeProgressStore // Default: in-memory
	StartBlock uint64                      // first block of the first subscription, 0 for new blocks only
	BatchSize  uint64                      // blocks per FilterLogs call in Backfill, Default: 2000
	Buffer     int                         // Default: 100
	MinBackoff time.Duration               // Default: 500ms
	MaxBackoff time.Duration               // Default: 30s
	Logger     *zerolog.Logger
	Metrics    *observability.Metrics
}

// NewFactorySource creates a factory event source.
func NewFactorySource(opts FactorySourceOptions) *FactorySource {
	factory := opts.Factory
	if factory == (common.Address{}) {
		factory = chain.MainnetFactoryV2
	}

	var progress storage.IntakeProgressStore = opts.Progress
	if progress == nil {
		progress = memory.NewIntakeProgressStore()
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	minBackoff := opts.MinBackoff
	if minBackoff == 0 {
		minBackoff = defaultMinBackoff
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = defaultMaxBackoff
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &FactorySource{
		logs:       opts.Logs,
		factory:    factory,
		progress:   progress,
		startBlock: opts.StartBlock,
		batchSize:  batchSize,
		buffer:     buffer,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

var _ PairSource = (*FactorySource)(nil)

// Subscribe starts the live subscription. Failure of the first subscription
// is returned; later subscription errors are retried with exponential backoff
// until ctx is cancelled. After a resubscription the blocks missed during the
// outage are read with FilterLogs and delivered before new live events.
func (s *FactorySource) Subscribe(ctx context.Context) (<-chan domain.PairEvent, error) {
	logs := make(chan types.Log, s.buffer)
	sub, err := s.subscribe(ctx, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe to factory %s: %w", s.factory.Hex(), err)
	}
	s.logger.Info().Str("factory", s.factory.Hex()).Msg("subscribed to PairCreated")

	out := make(chan domain.PairEvent, s.buffer)
	go s.loop(ctx, sub, logs, out)
	return out, nil
}

func (s *FactorySource) loop(ctx context.Context, sub ethereum.Subscription, logs chan types.Log, out chan<- domain.PairEvent) {
	defer close(out)
	defer func() {
		if sub != nil {
			sub.Unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-sub.Err():
			sub.Unsubscribe()
			sub = nil
			s.logger.Warn().Err(err).Msg("factory subscription dropped, resubscribing")
			s.metrics.RecordResubscribe()

			from, err := s.resumeBlock(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("load resume block for gap replay")
			}
			next, err := s.resubscribe(ctx, logs)
			if err != nil {
				return
			}
			sub = next
			if !s.catchUp(ctx, from, out) {
				return
			}

		case l := <-logs:
			ev, v := s.accept(ctx, l)
			if v != accepted {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *FactorySource) resubscribe(ctx context.Context, logs chan types.Log) (ethereum.Subscription, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.minBackoff
	policy.MaxInterval = s.maxBackoff
	policy.MaxElapsedTime = 0

	var sub ethereum.Subscription
	op := func() error {
		var err error
		sub, err = s.subscribe(ctx, logs)
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("resubscribe failed")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	s.logger.Info().Msg("resubscribed to PairCreated")
	return sub, nil
}

// catchUp delivers the events of blocks [from, head]. Pools already delivered
// are skipped, so overlap with the live subscription is harmless. With no
// anchor block (nothing delivered, no start block) there is nothing to replay.
// It returns false when ctx ended during delivery.
func (s *FactorySource) catchUp(ctx context.Context, from uint64, out chan<- domain.PairEvent) bool {
	if from == 0 {
		return true
	}
	head, err := s.logs.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Uint64("from", from).Msg("read head for gap replay")
		return ctx.Err() == nil
	}
	if head < from {
		return true
	}

	result, err := s.Backfill(ctx, from, head)
	if err != nil {
		s.logger.Warn().Err(err).Uint64("from", from).Uint64("to", head).Msg("gap replay incomplete")
	}
	if result == nil {
		return ctx.Err() == nil
	}
	for _, ev := range result.Events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (s *FactorySource) subscribe(ctx context.Context, logs chan types.Log) (ethereum.Subscription, error) {
	q := s.query()
	from, err := s.resumeBlock(ctx)
	if err != nil {
		return nil, err
	}
	if from > 0 {
		q.FromBlock = new(big.Int).SetUint64(from)
	}
	return s.logs.SubscribeFilterLogs(ctx, q, logs)
}

// resumeBlock is the block of the last delivered event, or the configured
// start block before anything was delivered. It is passed as FromBlock to
// the subscription, which nodes may ignore; catchUp covers the gap instead.
// The last block is included because later logs of it may not have been
// seen yet.
func (s *FactorySource) resumeBlock(ctx context.Context) (uint64, error) {
	p, err := s.progress.GetLastProcessed(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return s.startBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load intake progress: %w", err)
	}
	return p.Block, nil
}

func (s *FactorySource) query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{s.factory},
		Topics:    [][]common.Hash{{chain.PairCreatedTopic}},
	}
}

// accept decodes a log and records it as delivered.
func (s *FactorySource) accept(ctx context.Context, l types.Log) (domain.PairEvent, verdict) {
	if l.Removed {
		s.logger.Debug().Str("tx", l.TxHash.Hex()).Msg("skip removed log")
		return domain.PairEvent{}, skippedRemoved
	}

	ev, err := chain.ParsePairCreated(l)
	if err != nil {
		s.logger.Warn().Err(err).Str("tx", l.TxHash.Hex()).Msg("skip undecodable log")
		return domain.PairEvent{}, skippedInvalid
	}

	seen, err := s.progress.IsPoolSeen(ctx, ev.Pool)
	if err != nil {
		s.logger.Warn().Err(err).Str("pool", ev.Pool.Hex()).Msg("skip log with unusable pool")
		return domain.PairEvent{}, skippedInvalid
	}
	if seen {
		s.logger.Debug().Str("pool", ev.Pool.Hex()).Msg("skip duplicate pool")
		return domain.PairEvent{}, skippedDuplicate
	}

	if err := s.progress.MarkPoolSeen(ctx, ev.Pool); err != nil {
		s.logger.Warn().Err(err).Str("pool", ev.Pool.Hex()).Msg("mark pool seen")
	}
	if err := s.progress.SetLastProcessed(ctx, &storage.IntakeProgress{Block: l.BlockNumber, LogIndex: l.Index}); err != nil {
		s.logger.Warn().Err(err).Uint64("block", l.BlockNumber).Msg("save intake progress")
	}
	s.metrics.RecordEvent()
	return ev, accepted
}
