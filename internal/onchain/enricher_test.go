package onchain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/chain/stub"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/onchain"
	"liquidity-event-evaluator/internal/price"
)

var (
	token    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	other    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	pool     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	reversed = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newBackend() *stub.Chain {
	backend := stub.NewChain(big.NewInt(1), chain.MainnetWETH, chain.MainnetRouterV2)
	backend.AddToken(chain.MainnetWETH, stub.Token{Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18, TotalSupply: eth(3_000_000)})
	backend.AddToken(token, stub.Token{Name: "Token", Symbol: "TKN", Decimals: 9, TotalSupply: big.NewInt(1e15)})
	backend.AddPair(pool, stub.Pair{
		Token0:           token,
		Token1:           chain.MainnetWETH,
		Reserve0:         big.NewInt(5e14),
		Reserve1:         eth(5),
		Price0Cumulative: big.NewInt(11),
		Price1Cumulative: big.NewInt(22),
		KLast:            big.NewInt(33),
		TimestampLast:    1_700_000_000,
	})
	backend.AddPair(reversed, stub.Pair{
		Token0:   chain.MainnetWETH,
		Token1:   token,
		Reserve0: eth(3),
		Reserve1: big.NewInt(4e14),
	})
	backend.SetBlock(19_000_000)
	return backend
}

func newEnricher(t *testing.T, backend *stub.Chain, retries int) *onchain.Enricher {
	t.Helper()
	return onchain.NewEnricher(onchain.Options{
		Client:     mustClient(t, backend),
		BaseAsset:  chain.MainnetWETH,
		Price:      price.Static(decimal.NewFromInt(2000)),
		Retries:    retries,
		RetryDelay: 1,
	})
}

func TestLiquidityUSD(t *testing.T) {
	got := onchain.LiquidityUSD(big.NewInt(1e18), 18, decimal.NewFromInt(2000))
	assert.True(t, got.Equal(decimal.NewFromInt(4000)), "got %s", got)

	got = onchain.LiquidityUSD(big.NewInt(2_500_000), 6, decimal.NewFromInt(1))
	assert.True(t, got.Equal(decimal.NewFromInt(5)), "got %s", got)

	got = onchain.LiquidityUSD(new(big.Int), 18, decimal.NewFromInt(2000))
	assert.True(t, got.IsZero())
}

func TestEnrich_BaseIsToken1(t *testing.T) {
	backend := newBackend()
	enricher := newEnricher(t, backend, 0)

	candidate, err := enricher.Enrich(context.Background(), domain.PairEvent{
		Token0: token, Token1: chain.MainnetWETH, Pool: pool, BlockNumber: 18_999_990,
	})
	require.NoError(t, err)

	assert.False(t, candidate.BaseIsToken0)
	assert.Equal(t, uint64(19_000_000), candidate.Block)

	assert.Equal(t, chain.MainnetWETH, candidate.Base.Address)
	assert.Equal(t, "WETH", candidate.Base.Symbol)
	assert.Equal(t, uint8(18), candidate.Base.Decimals)
	assert.Equal(t, eth(5), candidate.Base.Reserve)

	assert.Equal(t, token, candidate.Counter.Address)
	assert.Equal(t, "TKN", candidate.Counter.Symbol)
	assert.Equal(t, "Token", candidate.Counter.Name)
	assert.Equal(t, uint8(9), candidate.Counter.Decimals)
	assert.Equal(t, big.NewInt(5e14), candidate.Counter.Reserve)
	assert.Equal(t, big.NewInt(1e15), candidate.Counter.TotalSupply)

	liq := candidate.Liquidity
	assert.Equal(t, big.NewInt(5e14), liq.Reserve0)
	assert.Equal(t, eth(5), liq.Reserve1)
	assert.Equal(t, big.NewInt(11), liq.PriceCumulative0)
	assert.Equal(t, big.NewInt(22), liq.PriceCumulative1)
	assert.Equal(t, big.NewInt(33), liq.InvariantK)
	assert.Equal(t, uint32(1_700_000_000), liq.BlockTimestampLast)
	assert.Equal(t, uint64(19_000_000), liq.BlockNumber)

	assert.True(t, candidate.BasePriceUSD.Equal(decimal.NewFromInt(2000)))
	assert.True(t, candidate.LiquidityUSD.Equal(decimal.NewFromInt(20_000)), "got %s", candidate.LiquidityUSD)
}

func TestEnrich_BaseIsToken0(t *testing.T) {
	backend := newBackend()
	enricher := newEnricher(t, backend, 0)

	candidate, err := enricher.Enrich(context.Background(), domain.PairEvent{
		Token0: chain.MainnetWETH, Token1: token, Pool: reversed,
	})
	require.NoError(t, err)

	assert.True(t, candidate.BaseIsToken0)
	assert.Equal(t, chain.MainnetWETH, candidate.Base.Address)
	assert.Equal(t, eth(3), candidate.Base.Reserve)
	assert.Equal(t, token, candidate.Counter.Address)
	assert.Equal(t, big.NewInt(4e14), candidate.Counter.Reserve)
	assert.True(t, candidate.LiquidityUSD.Equal(decimal.NewFromInt(12_000)), "got %s", candidate.LiquidityUSD)
}

func TestEnrich_ReadsArePinnedToOneBlock(t *testing.T) {
	backend := newBackend()
	enricher := newEnricher(t, backend, 0)

	_, err := enricher.Enrich(context.Background(), domain.PairEvent{
		Token0: token, Token1: chain.MainnetWETH, Pool: pool,
	})
	require.NoError(t, err)

	blocks := backend.CallBlocks()
	require.NotEmpty(t, blocks)
	for _, b := range blocks {
		require.NotNil(t, b)
		assert.Equal(t, uint64(19_000_000), b.Uint64())
	}
}

func TestEnrich_InvalidPairMakesNoCalls(t *testing.T) {
	backend := newBackend()
	enricher := newEnricher(t, backend, 0)

	_, err := enricher.Enrich(context.Background(), domain.PairEvent{
		Token0: token, Token1: other, Pool: pool,
	})

	var invalid *domain.InvalidPairError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, pool, invalid.Pool)
	assert.Equal(t, chain.MainnetWETH, invalid.Base)
	assert.Zero(t, backend.Calls())
}

func TestEnrich_ReadErrorPropagates(t *testing.T) {
	backend := newBackend()
	backend.CallErr = errors.New("execution reverted")
	enricher := newEnricher(t, backend, 2)

	_, err := enricher.Enrich(context.Background(), domain.PairEvent{
		Token0: token, Token1: chain.MainnetWETH, Pool: pool,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestEnrich_PriceErrorPropagates(t *testing.T) {
	backend := newBackend()
	enricher := onchain.NewEnricher(onchain.Options{
		Client:    mustClient(t, backend),
		BaseAsset: chain.MainnetWETH,
		Price:     &failingPrice{err: price.ErrNoQuote},
	})

	_, err := enricher.Enrich(context.Background(), domain.PairEvent{
		Token0: token, Token1: chain.MainnetWETH, Pool: pool,
	})
	assert.ErrorIs(t, err, price.ErrNoQuote)
}

type failingPrice struct {
	err error
}

func (f *failingPrice) BaseAssetUSD(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, f.err
}

func mustClient(t *testing.T, backend *stub.Chain) *chain.Client {
	t.Helper()
	client, err := chain.NewClient(chain.ClientOptions{Backend: backend})
	require.NoError(t, err)
	return client
}
