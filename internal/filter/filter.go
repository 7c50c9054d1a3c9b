// Package filter holds the accept/reject predicates applied to a candidate
// as it moves through the pipeline.
package filter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidity-event-evaluator/internal/domain"
)

// Predicate names.
const (
	NameAssetMembership = "asset_membership"
	NameMinLiquidity    = "min_liquidity_usd"
	NameMaxCost         = "max_fee_percent"
)

// Result is pass/fail for one predicate.
type Result struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Reason describes a failed result. It is empty when the result passed.
func (r Result) Reason() string {
	if r.Pass {
		return ""
	}
	return fmt.Sprintf("%s: %s does not satisfy %s", r.Name, r.Actual, r.Threshold)
}

// Predicate checks a single property of T.
type Predicate[T any] struct {
	Name      string
	Threshold string
	Eval      func(v T) (actual string, pass bool)
}

// Check evaluates the predicate against v.
func (p Predicate[T]) Check(v T) Result {
	actual, pass := p.Eval(v)
	return Result{Name: p.Name, Threshold: p.Threshold, Actual: actual, Pass: pass}
}

// Chain is an ordered list of predicates over the same input.
type Chain[T any] []Predicate[T]

// Evaluate runs the predicates in order and stops at the first failure.
// It returns every result produced and whether all of them passed.
func (c Chain[T]) Evaluate(v T) ([]Result, bool) {
	results := make([]Result, 0, len(c))
	for _, p := range c {
		r := p.Check(v)
		results = append(results, r)
		if !r.Pass {
			return results, false
		}
	}
	return results, true
}

// AssetMembership passes when either token of the event is base.
// It only looks at the event, so it costs no network calls.
func AssetMembership(base common.Address) Predicate[domain.PairEvent] {
	return Predicate[domain.PairEvent]{
		Name:      NameAssetMembership,
		Threshold: "pair contains " + base.Hex(),
		Eval: func(ev domain.PairEvent) (string, bool) {
			return ev.Token0.Hex() + "/" + ev.Token1.Hex(), ev.Involves(base)
		},
	}
}

// MinLiquidity passes when the pool is worth at least min USD.
func MinLiquidity(min decimal.Decimal) Predicate[*domain.EnrichedCandidate] {
	return Predicate[*domain.EnrichedCandidate]{
		Name:      NameMinLiquidity,
		Threshold: ">= " + min.String(),
		Eval: func(c *domain.EnrichedCandidate) (string, bool) {
			return c.LiquidityUSD.StringFixed(2), c.LiquidityUSD.GreaterThanOrEqual(min)
		},
	}
}

// MaxCost passes when the round-trip cost is at most max percent of the
// amount spent. The cost is the negated signed fee: a loss is a positive
// cost, and a round trip that gained value has a negative cost and passes.
func MaxCost(max decimal.Decimal) Predicate[*domain.SimulationResult] {
	return Predicate[*domain.SimulationResult]{
		Name:      NameMaxCost,
		Threshold: "<= " + max.String(),
		Eval: func(r *domain.SimulationResult) (string, bool) {
			cost := r.FeePercent.Neg()
			return cost.StringFixed(2), cost.LessThanOrEqual(max)
		},
	}
}
