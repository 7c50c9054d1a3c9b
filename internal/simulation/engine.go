// Package simulation runs a buy/approve/sell round trip of a candidate's
// counter asset on a local fork and measures what it cost.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/observability"
)

// Defaults of a round trip.
const (
	DefaultNotionalWei  = 50_000_000_000_000_000 // 0.05 ETH
	DefaultDeadline     = 1200 * time.Second
	DefaultSwapGasLimit = 2_000_000
)

// Engine errors
var (
	ErrNoReceipt     = errors.New("transaction has no receipt")
	ErrReverted      = errors.New("transaction reverted")
	ErrNothingBought = errors.New("buy returned no tokens")
	ErrNoAllowance   = errors.New("approve left the router allowance below the amount to sell")
)

// Fork manages the local fork the round trip runs on. *chain.Forker satisfies it.
type Fork interface {
	Reset(ctx context.Context, block uint64) error
	Mine(ctx context.Context) error
	SetBalance(ctx context.Context, account common.Address, wei *big.Int) error
}

var _ Fork = (*chain.Forker)(nil)

// Engine runs forked round trips. It sends transactions from a single
// wallet, so Run must not be called concurrently.
type Engine struct {
	client       *chain.Client
	fork         Fork
	notional     *big.Int
	deadline     time.Duration
	swapGasLimit uint64
	fundWei      *big.Int
	now          func() time.Time
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// Options contains configuration for creating an Engine.
type Options struct {
	Client       *chain.Client // fork client with the wallet key
	Fork         Fork
	Notional     *big.Int      // Default: 0.05 ETH
	Deadline     time.Duration // Default: 1200s
	SwapGasLimit uint64        // Default: 2,000,000
	FundWei      *big.Int      // wallet balance set after each reset, nil to keep the forked balance
	Now          func() time.Time
	Logger       *zerolog.Logger
	Metrics      *observability.Metrics
}

// NewEngine creates a simulation engine.
func NewEngine(opts Options) *Engine {
	notional := opts.Notional
	if notional == nil || notional.Sign() <= 0 {
		notional = big.NewInt(DefaultNotionalWei)
	}

	deadline := opts.Deadline
	if deadline == 0 {
		deadline = DefaultDeadline
	}

	swapGasLimit := opts.SwapGasLimit
	if swapGasLimit == 0 {
		swapGasLimit = DefaultSwapGasLimit
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Engine{
		client:       opts.Client,
		fork:         opts.Fork,
		notional:     new(big.Int).Set(notional),
		deadline:     deadline,
		swapGasLimit: swapGasLimit,
		fundWei:      opts.FundWei,
		now:          now,
		logger:       logger,
		metrics:      opts.Metrics,
	}
}

// Run executes the round trip for candidate.
// Steps:
//  1. Reset the fork to the block the candidate was enriched at
//  2. Fund the wallet when configured, then sync nonce and fees
//  3. Record the start balances and quote the buy
//  4. Buy the counter asset with the notional
//  5. Approve the router and confirm the allowance covers the bought amount
//  6. Sell the bought amount back; tokens held before the buy stay
//  7. Record the final balance and settle
//
// Every leg is mined and must produce a successful receipt; otherwise Run
// returns a *domain.SimulationFailure naming the leg. Nothing is retried.
func (e *Engine) Run(ctx context.Context, candidate *domain.EnrichedCandidate) (*domain.SimulationResult, error) {
	base, counter := candidate.Base.Address, candidate.Counter.Address
	log := e.logger.With().Str("pool", candidate.Event.Pool.Hex()).Str("token", counter.Hex()).Logger()

	// 1. Reset
	if err := e.fork.Reset(ctx, candidate.Block); err != nil {
		return nil, &domain.SimulationFailure{Leg: domain.LegReset, Err: err}
	}

	// 2. Fund and sync
	wallet := e.client.Wallet()
	if e.fundWei != nil {
		if err := e.fork.SetBalance(ctx, wallet, e.fundWei); err != nil {
			return nil, &domain.SimulationFailure{Leg: domain.LegReset, Err: err}
		}
	}
	if err := e.client.SyncNonce(ctx); err != nil {
		return nil, &domain.SimulationFailure{Leg: domain.LegReset, Err: err}
	}
	if err := e.client.SyncFees(ctx); err != nil {
		return nil, &domain.SimulationFailure{Leg: domain.LegReset, Err: err}
	}

	// 3. Start balances and quote
	start, err := e.client.NativeBalance(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start balance: %w", err)
	}
	held, err := e.client.BalanceOf(ctx, counter, nil)
	if err != nil {
		return nil, fmt.Errorf("start token balance: %w", err)
	}

	router := e.client.Router()
	buyPath := []common.Address{base, counter}
	var quoted *big.Int
	if amounts, err := router.GetAmountsOut(e.client.CallOpts(ctx, nil), e.notional, buyPath); err != nil {
		log.Warn().Err(err).Msg("router quote unavailable")
	} else if len(amounts) == len(buyPath) {
		quoted = amounts[len(amounts)-1]
	}

	deadline := big.NewInt(e.now().Add(e.deadline).Unix())

	// 4. Buy
	buyGas, err := e.send(ctx, domain.LegBuy, func() (*types.Transaction, error) {
		opts, err := e.client.Overrides(ctx)
		if err != nil {
			return nil, err
		}
		opts.Value = e.notional
		opts.GasLimit = e.swapGasLimit
		return router.SwapExactETHForTokens(opts, new(big.Int), buyPath, wallet, deadline)
	})
	if err != nil {
		return nil, err
	}

	after, err := e.client.BalanceOf(ctx, counter, nil)
	if err != nil {
		return nil, fmt.Errorf("bought balance: %w", err)
	}
	bought := new(big.Int).Sub(after, held)
	if bought.Sign() <= 0 {
		return nil, &domain.SimulationFailure{Leg: domain.LegBuy, TxHash: buyGas.TxHash, Err: ErrNothingBought}
	}

	// 5. Approve
	approveGas, err := e.send(ctx, domain.LegApprove, func() (*types.Transaction, error) {
		opts, err := e.client.Overrides(ctx)
		if err != nil {
			return nil, err
		}
		return e.client.ERC20(counter).Approve(opts, router.Address(), math.MaxBig256)
	})
	if err != nil {
		return nil, err
	}
	allowance, err := e.client.ERC20(counter).Allowance(e.client.CallOpts(ctx, nil), wallet, router.Address())
	if err != nil {
		return nil, &domain.SimulationFailure{Leg: domain.LegApprove, TxHash: approveGas.TxHash, Err: err}
	}
	if allowance.Cmp(bought) < 0 {
		return nil, &domain.SimulationFailure{Leg: domain.LegApprove, TxHash: approveGas.TxHash, Err: ErrNoAllowance}
	}

	// 6. Sell
	sellGas, err := e.send(ctx, domain.LegSell, func() (*types.Transaction, error) {
		opts, err := e.client.Overrides(ctx)
		if err != nil {
			return nil, err
		}
		opts.GasLimit = e.swapGasLimit
		return router.SwapExactTokensForETH(opts, bought, new(big.Int), []common.Address{counter, base}, wallet, deadline)
	})
	if err != nil {
		return nil, err
	}

	// 7. Settle
	final, err := e.client.NativeBalance(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("final balance: %w", err)
	}
	settlement, err := Settle(start, final, e.notional, buyGas, approveGas, sellGas)
	if err != nil {
		return nil, err
	}

	result := &domain.SimulationResult{
		Block:           candidate.Block,
		SpentAmount:     new(big.Int).Set(e.notional),
		StartBalance:    start,
		QuotedAmount:    quoted,
		BoughtAmount:    bought,
		FinalBalance:    final,
		BuyGas:          buyGas,
		ApproveGas:      approveGas,
		SellGas:         sellGas,
		TotalGasWei:     settlement.TotalGasWei,
		RealizedLossWei: settlement.RealizedLossWei,
		FeePercent:      settlement.FeePercent,
		Suspicious:      settlement.Suspicious,
	}

	e.metrics.RecordSimulation(result.FeePercent.InexactFloat64(), result.Suspicious)
	log.Debug().
		Str("fee_percent", result.FeePercent.StringFixed(4)).
		Str("bought", bought.String()).
		Str("total_gas_wei", result.TotalGasWei.String()).
		Bool("suspicious", result.Suspicious).
		Msg("round trip settled")

	return result, nil
}

// send submits one leg, mines it and returns its gas accounting.
func (e *Engine) send(ctx context.Context, leg domain.SimulationLeg, submit func() (*types.Transaction, error)) (domain.GasReport, error) {
	tx, err := submit()
	if err != nil {
		return domain.GasReport{}, &domain.SimulationFailure{Leg: leg, Err: err}
	}
	hash := tx.Hash()

	if err := e.fork.Mine(ctx); err != nil {
		return domain.GasReport{}, &domain.SimulationFailure{Leg: leg, TxHash: hash, Err: err}
	}
	receipt, err := e.client.Receipt(ctx, hash)
	if err != nil || receipt == nil {
		return domain.GasReport{}, &domain.SimulationFailure{Leg: leg, TxHash: hash, Err: errors.Join(ErrNoReceipt, err)}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.GasReport{}, &domain.SimulationFailure{Leg: leg, TxHash: hash, Err: ErrReverted}
	}

	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	return domain.GasReport{
		TxHash: hash,
		Used:   receipt.GasUsed,
		Price:  new(big.Int).Set(price),
		Total:  new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price),
	}, nil
}
