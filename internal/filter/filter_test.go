package filter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-event-evaluator/internal/domain"
)

var (
	weth  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokB  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	pool1 = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestAssetMembership(t *testing.T) {
	p := AssetMembership(weth)

	tests := []struct {
		name string
		ev   domain.PairEvent
		want bool
	}{
		{"base is token0", domain.PairEvent{Token0: weth, Token1: tokA, Pool: pool1}, true},
		{"base is token1", domain.PairEvent{Token0: tokA, Token1: weth, Pool: pool1}, true},
		{"no base", domain.PairEvent{Token0: tokA, Token1: tokB, Pool: pool1}, false},
		{"lowercase hex", domain.PairEvent{Token0: common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"), Token1: tokA}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.Check(tt.ev)
			assert.Equal(t, tt.want, r.Pass)
			assert.Equal(t, NameAssetMembership, r.Name)
			if tt.want {
				assert.Empty(t, r.Reason())
			} else {
				assert.Contains(t, r.Reason(), NameAssetMembership)
			}
		})
	}
}

func TestMinLiquidity_Boundary(t *testing.T) {
	p := MinLiquidity(decimal.NewFromInt(10_000))

	below := p.Check(&domain.EnrichedCandidate{LiquidityUSD: decimal.NewFromInt(9_999)})
	assert.False(t, below.Pass)
	assert.Equal(t, "9999.00", below.Actual)
	assert.Equal(t, ">= 10000", below.Threshold)

	at := p.Check(&domain.EnrichedCandidate{LiquidityUSD: decimal.NewFromInt(10_000)})
	assert.True(t, at.Pass)

	fraction := p.Check(&domain.EnrichedCandidate{LiquidityUSD: decimal.RequireFromString("9999.999")})
	assert.False(t, fraction.Pass)
}

func TestMaxCost(t *testing.T) {
	p := MaxCost(decimal.NewFromInt(15))

	tests := []struct {
		fee  string
		want bool
	}{
		{"-14.99", true},
		{"-15", true},
		{"-15.01", false},
		{"-140", false},
		{"-100", false},
		{"0", true},
		{"40", true},
	}
	for _, tt := range tests {
		t.Run(tt.fee, func(t *testing.T) {
			r := p.Check(&domain.SimulationResult{FeePercent: decimal.RequireFromString(tt.fee)})
			assert.Equal(t, tt.want, r.Pass)
		})
	}
}

func TestMaxCost_ReportsCostNotFee(t *testing.T) {
	r := MaxCost(decimal.NewFromInt(15)).Check(&domain.SimulationResult{FeePercent: decimal.RequireFromString("-52.5")})

	assert.False(t, r.Pass)
	assert.Equal(t, "52.50", r.Actual)
	assert.Equal(t, "max_fee_percent: 52.50 does not satisfy <= 15", r.Reason())
}

func TestChain_StopsAtFirstFailure(t *testing.T) {
	var evaluated []string
	pred := func(name string, pass bool) Predicate[int] {
		return Predicate[int]{
			Name: name,
			Eval: func(int) (string, bool) {
				evaluated = append(evaluated, name)
				return "", pass
			},
		}
	}

	results, ok := Chain[int]{pred("a", true), pred("b", false), pred("c", true)}.Evaluate(0)
	assert.False(t, ok)
	require.Len(t, results, 2)
	assert.True(t, results[0].Pass)
	assert.False(t, results[1].Pass)
	assert.Equal(t, []string{"a", "b"}, evaluated)
}

func TestChain_AllPass(t *testing.T) {
	chain := Chain[*domain.EnrichedCandidate]{MinLiquidity(decimal.NewFromInt(10))}
	results, ok := chain.Evaluate(&domain.EnrichedCandidate{LiquidityUSD: decimal.NewFromInt(11)})
	assert.True(t, ok)
	assert.Len(t, results, 1)

	results, ok = Chain[int]{}.Evaluate(1)
	assert.True(t, ok)
	assert.Empty(t, results)
}
