// Package pipeline evaluates pair events one at a time through the
// asset, on-chain, liquidity, off-chain, simulation and cost stages.
package pipeline

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"liquidity-event-evaluator/internal/decision"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/filter"
	"liquidity-event-evaluator/internal/idhash"
	"liquidity-event-evaluator/internal/observability"
	"liquidity-event-evaluator/internal/storage"
	"liquidity-event-evaluator/internal/storage/memory"
)

// Default thresholds.
var (
	DefaultMinLiquidityUSD = decimal.NewFromInt(10_000)
	DefaultMaxFeePercent   = decimal.NewFromInt(15)
)

// Enricher performs the on-chain reads of a candidate.
type Enricher interface {
	Enrich(ctx context.Context, ev domain.PairEvent) (*domain.EnrichedCandidate, error)
}

// ReportFetcher gathers the off-chain report of a token.
type ReportFetcher interface {
	Enrich(ctx context.Context, token common.Address) (*domain.OffChainReport, error)
}

// Simulator runs the forked round trip of a candidate.
type Simulator interface {
	Run(ctx context.Context, candidate *domain.EnrichedCandidate) (*domain.SimulationResult, error)
}

// Pipeline turns pair events into decisions.
type Pipeline struct {
	chainID   uint64
	asset     filter.Chain[domain.PairEvent]
	liquidity filter.Chain[*domain.EnrichedCandidate]
	cost      filter.Chain[*domain.SimulationResult]

	onChain   Enricher
	offChain  ReportFetcher
	simulator Simulator
	store     storage.DecisionStore
	metrics   *observability.Metrics
	logger    zerolog.Logger
	clock     func() time.Time
}

// Options contains configuration for creating a Pipeline.
type Options struct {
	ChainID         uint64
	BaseAsset       common.Address
	MinLiquidityUSD decimal.Decimal // Default: 10000
	MaxFeePercent   decimal.Decimal // Default: 15

	OnChain   Enricher
	OffChain  ReportFetcher
	Simulator Simulator
	Store     storage.DecisionStore // Default: in-memory, last 1000 decisions
	Metrics   *observability.Metrics
	Logger    *zerolog.Logger
	Clock     func() time.Time
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	minLiquidity := opts.MinLiquidityUSD
	if minLiquidity.IsZero() {
		minLiquidity = DefaultMinLiquidityUSD
	}

	maxFee := opts.MaxFeePercent
	if maxFee.IsZero() {
		maxFee = DefaultMaxFeePercent
	}

	var store storage.DecisionStore = opts.Store
	if store == nil {
		store = memory.NewDecisionStore(memory.DefaultDecisionCapacity)
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Pipeline{
		chainID:   opts.ChainID,
		asset:     filter.Chain[domain.PairEvent]{filter.AssetMembership(opts.BaseAsset)},
		liquidity: filter.Chain[*domain.EnrichedCandidate]{filter.MinLiquidity(minLiquidity)},
		cost:      filter.Chain[*domain.SimulationResult]{filter.MaxCost(maxFee)},
		onChain:   opts.OnChain,
		offChain:  opts.OffChain,
		simulator: opts.Simulator,
		store:     store,
		metrics:   opts.Metrics,
		logger:    logger,
		clock:     clock,
	}
}

// Store returns the decision store.
func (p *Pipeline) Store() storage.DecisionStore {
	return p.store
}

// Run evaluates events in arrival order, one at a time, until the channel
// is closed or ctx is cancelled. Per-candidate failures become decisions
// and never stop the loop.
func (p *Pipeline) Run(ctx context.Context, events <-chan domain.PairEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Evaluate(ctx, ev)
		}
	}
}

// Evaluate runs every stage for ev and records the decision.
// Steps:
//  1. asset: the pair must contain the base asset, checked before any network call
//  2. onchain: token metadata and pool state at a pinned block
//  3. liquidity: pool value in USD against the minimum
//  4. offchain: security and market reports, advisory once fetched
//  5. simulation: forked buy/approve/sell round trip
//  6. cost: realized fee percent against the maximum
func (p *Pipeline) Evaluate(ctx context.Context, ev domain.PairEvent) *decision.Decision {
	d := decision.New(idhash.ComputeCandidateID(p.chainID, ev), ev, p.clock())

	// 1. Asset
	results, ok := p.asset.Evaluate(ev)
	d.AddChecks(results...)
	if !ok {
		return p.finish(ctx, d.Reject(decision.StageAsset, last(results), p.clock()))
	}

	// 2. On-chain
	start := time.Now()
	candidate, err := p.onChain.Enrich(ctx, ev)
	p.metrics.RecordStage(string(decision.StageOnChain), time.Since(start))
	if err != nil {
		return p.finish(ctx, d.Fail(decision.StageOnChain, err, p.clock()))
	}
	d.Candidate = candidate

	// 3. Liquidity
	results, ok = p.liquidity.Evaluate(candidate)
	d.AddChecks(results...)
	if !ok {
		return p.finish(ctx, d.Reject(decision.StageLiquidity, last(results), p.clock()))
	}

	// 4. Off-chain
	start = time.Now()
	report, err := p.offChain.Enrich(ctx, candidate.Counter.Address)
	p.metrics.RecordStage(string(decision.StageOffChain), time.Since(start))
	if err != nil {
		return p.finish(ctx, d.Fail(decision.StageOffChain, err, p.clock()))
	}
	d.Report = report

	// 5. Simulation
	start = time.Now()
	sim, err := p.simulator.Run(ctx, candidate)
	p.metrics.RecordStage(string(decision.StageSimulation), time.Since(start))
	if err != nil {
		return p.finish(ctx, d.Fail(decision.StageSimulation, err, p.clock()))
	}
	d.Simulation = sim

	// 6. Cost
	results, ok = p.cost.Evaluate(sim)
	d.AddChecks(results...)
	if !ok {
		return p.finish(ctx, d.Reject(decision.StageCost, last(results), p.clock()))
	}

	return p.finish(ctx, d.Accept(p.clock()))
}

func last(results []filter.Result) filter.Result {
	if len(results) == 0 {
		return filter.Result{}
	}
	return results[len(results)-1]
}

func (p *Pipeline) finish(ctx context.Context, d *decision.Decision) *decision.Decision {
	block := d.Event.BlockNumber
	if d.Candidate != nil {
		block = d.Candidate.Block
	}
	p.metrics.RecordDecision(string(d.Outcome), string(d.Stage), block)

	if err := p.store.Insert(ctx, d); err != nil {
		p.logger.Error().Err(err).Str("decision", d.ID.String()).Msg("store decision")
	}

	var event *zerolog.Event
	switch d.Outcome {
	case decision.OutcomeAccepted, decision.OutcomeRejected:
		event = p.logger.Info()
	default:
		event = p.logger.Warn().Err(d.Err)
	}
	event = event.
		Str("decision", d.ID.String()).
		Str("candidate", d.CandidateID).
		Str("pool", d.Event.Pool.Hex()).
		Str("outcome", string(d.Outcome)).
		Str("stage", string(d.Stage)).
		Dur("took", d.Duration())
	if d.Candidate != nil {
		event = event.Str("liquidity_usd", d.Candidate.LiquidityUSD.StringFixed(2))
	}
	if d.Simulation != nil {
		event = event.Str("fee_percent", d.Simulation.FeePercent.StringFixed(2))
	}
	if d.Reason != "" {
		event = event.Str("reason", d.Reason)
	}
	event.Msg("candidate evaluated")

	if e := p.logger.Debug(); e.Enabled() {
		e.Msg(decision.Markdown(d))
	}
	return d
}
