// Package onchain reads token metadata and pool state for a candidate pair
// and normalizes it into base and counter sides.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/price"
)

var two = decimal.NewFromInt(2)

// Enricher performs the on-chain reads of one candidate.
type Enricher struct {
	client     *chain.Client
	base       common.Address
	price      price.Source
	retries    int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// Options contains configuration for creating an Enricher.
type Options struct {
	Client     *chain.Client
	BaseAsset  common.Address
	Price      price.Source
	Retries    int           // extra attempts of the whole read set, Default: 0
	RetryDelay time.Duration // Default: 1s
	Logger     *zerolog.Logger
}

// NewEnricher creates an on-chain enricher.
func NewEnricher(opts Options) *Enricher {
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Enricher{
		client:     opts.Client,
		base:       opts.BaseAsset,
		price:      opts.Price,
		retries:    opts.Retries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// LiquidityUSD values a balanced two-asset pool from its base-side reserve:
// reserve scaled by decimals, times 2, times the base-asset USD price.
func LiquidityUSD(baseReserve *big.Int, decimals uint8, basePriceUSD decimal.Decimal) decimal.Decimal {
	return decimal.NewFromBigInt(baseReserve, -int32(decimals)).Mul(two).Mul(basePriceUSD)
}

// Enrich reads both tokens and the pool at a single pinned block.
// Steps:
//  1. Classify the base side; a pair without the base asset fails with
//     *domain.InvalidPairError before any read
//  2. Pin the head block
//  3. Fan out token0 info, token1 info, reserves, cumulative prices and kLast
//  4. Value the pool in USD
func (e *Enricher) Enrich(ctx context.Context, ev domain.PairEvent) (*domain.EnrichedCandidate, error) {
	// 1. Classify
	var baseIsToken0 bool
	switch e.base {
	case ev.Token0:
		baseIsToken0 = true
	case ev.Token1:
		baseIsToken0 = false
	default:
		return nil, &domain.InvalidPairError{Pool: ev.Pool, Token0: ev.Token0, Token1: ev.Token1, Base: e.base}
	}

	var snap *snapshot
	read := func() error {
		s, err := e.read(ctx, ev)
		if err != nil {
			return err
		}
		snap = s
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryDelay), uint64(e.retries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		e.logger.Warn().Err(err).Str("pool", ev.Pool.Hex()).Dur("retry_in", wait).Msg("on-chain read failed, retrying")
	}
	if err := backoff.RetryNotify(read, policy, notify); err != nil {
		return nil, err
	}

	candidate := &domain.EnrichedCandidate{
		Event:        ev,
		Block:        snap.block,
		BaseIsToken0: baseIsToken0,
		Liquidity:    snap.liquidity,
	}
	side0 := newSide(snap.token0, snap.liquidity.Reserve0)
	side1 := newSide(snap.token1, snap.liquidity.Reserve1)
	if baseIsToken0 {
		candidate.Base, candidate.Counter = side0, side1
	} else {
		candidate.Base, candidate.Counter = side1, side0
	}

	// 4. Value the pool
	basePrice, err := e.price.BaseAssetUSD(ctx)
	if err != nil {
		return nil, fmt.Errorf("base asset price: %w", err)
	}
	candidate.BasePriceUSD = basePrice
	candidate.LiquidityUSD = LiquidityUSD(candidate.Base.Reserve, candidate.Base.Decimals, basePrice)

	return candidate, nil
}

type snapshot struct {
	block     uint64
	token0    domain.TokenInfo
	token1    domain.TokenInfo
	liquidity domain.LiquiditySnapshot
}

func (e *Enricher) read(ctx context.Context, ev domain.PairEvent) (*snapshot, error) {
	// 2. Pin the block
	head, err := e.client.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}
	block := new(big.Int).SetUint64(head)

	// 3. Fan out
	snap := &snapshot{block: head, liquidity: domain.LiquiditySnapshot{BlockNumber: head}}
	liq := &snap.liquidity
	pair := e.client.Pair(ev.Pool)

	g, gctx := errgroup.WithContext(ctx)
	opts := func() *bind.CallOpts { return e.client.CallOpts(gctx, block) }

	g.Go(func() (err error) {
		snap.token0, err = e.client.ERC20(ev.Token0).Info(opts())
		return wrap(err, "token0 %s metadata", ev.Token0.Hex())
	})
	g.Go(func() (err error) {
		snap.token1, err = e.client.ERC20(ev.Token1).Info(opts())
		return wrap(err, "token1 %s metadata", ev.Token1.Hex())
	})
	g.Go(func() error {
		reserves, err := pair.GetReserves(opts())
		if err != nil {
			return wrap(err, "pool %s reserves", ev.Pool.Hex())
		}
		liq.Reserve0, liq.Reserve1, liq.BlockTimestampLast = reserves.Reserve0, reserves.Reserve1, reserves.BlockTimestampLast
		return nil
	})
	g.Go(func() (err error) {
		if liq.PriceCumulative0, err = pair.Price0CumulativeLast(opts()); err != nil {
			return wrap(err, "pool %s price0CumulativeLast", ev.Pool.Hex())
		}
		liq.PriceCumulative1, err = pair.Price1CumulativeLast(opts())
		return wrap(err, "pool %s price1CumulativeLast", ev.Pool.Hex())
	})
	g.Go(func() (err error) {
		liq.InvariantK, err = pair.KLast(opts())
		return wrap(err, "pool %s kLast", ev.Pool.Hex())
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func newSide(info domain.TokenInfo, reserve *big.Int) domain.AssetSide {
	return domain.AssetSide{
		Address:     info.Address,
		Reserve:     reserve,
		Decimals:    info.Decimals,
		Symbol:      info.Symbol,
		Name:        info.Name,
		TotalSupply: info.TotalSupply,
	}
}

func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
