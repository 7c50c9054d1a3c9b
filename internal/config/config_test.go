package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-event-evaluator/internal/chain"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range Keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPC_URL", "wss://node.example")
	t.Setenv("PRIVATE_KEY", "0x"+testKey)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wss://node.example", cfg.ForkUpstreamURL)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.ForkRPCURL)
	assert.Equal(t, testKey, cfg.PrivateKey)
	assert.Equal(t, uint64(1), cfg.ChainID)
	assert.Equal(t, chain.MainnetWETH, cfg.BaseAsset)
	assert.Equal(t, chain.MainnetFactoryV2, cfg.Factory)
	assert.Equal(t, chain.MainnetRouterV2, cfg.Router)
	assert.True(t, cfg.MinLiquidityUSD.Equal(decimal.NewFromInt(10_000)))
	assert.True(t, cfg.MaxFeePercent.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, big.NewInt(5e16), cfg.SimNotionalWei)
	assert.Nil(t, cfg.SimFundWei)
	assert.Equal(t, 1200*time.Second, cfg.SwapDeadline)
	assert.Equal(t, uint64(2_000_000), cfg.SwapGasLimit)
	assert.Equal(t, uint64(200_000), cfg.TxGasLimit)
	assert.Equal(t, 2, cfg.OffChainRetries)
	assert.Equal(t, 3*time.Second, cfg.OffChainRetryDelay)
	assert.Equal(t, PriceSourceStatic, cfg.BasePriceSource)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 1000, cfg.DecisionHistory)

	key, err := cfg.Key()
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestLoad_EnvFileUnderEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "RPC_URL=wss://from-file\nMIN_LIQUIDITY_USD=25000.5\nSIM_FUND_WEI=1e19\nBASE_ASSET=0x00000000000000000000000000000000000000a1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// The file only fills variables that are absent; clearEnv restores them afterwards
	for _, k := range []string{"RPC_URL", "SIM_FUND_WEI", "BASE_ASSET"} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("MIN_LIQUIDITY_USD", "30000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://from-file", cfg.RPCURL)
	assert.True(t, cfg.MinLiquidityUSD.Equal(decimal.NewFromInt(30_000)), "environment wins over file")
	assert.Equal(t, new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)), cfg.SimFundWei)
	assert.Equal(t, common.HexToAddress("0xa1"), cfg.BaseAsset)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAIN_ID", "mainnet")
	t.Setenv("MAX_FEE_PERCENT", "0")
	t.Setenv("MIN_LIQUIDITY_USD", "0")
	t.Setenv("DECISION_HISTORY", "-5")
	t.Setenv("SIM_NOTIONAL_WEI", "0.5")
	t.Setenv("BASE_PRICE_SOURCE", "oracle")
	t.Setenv("FACTORY", "0x1234")

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"CHAIN_ID",
		"SIM_NOTIONAL_WEI",
		"FACTORY",
		"RPC_URL is required",
		"PRIVATE_KEY is required",
		"MAX_FEE_PERCENT must be positive",
		"MIN_LIQUIDITY_USD must be positive",
		"DECISION_HISTORY must be positive",
		"BASE_PRICE_SOURCE",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_BadKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPC_URL", "wss://node.example")
	t.Setenv("PRIVATE_KEY", "not-a-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "PRIVATE_KEY:")
}

func TestValidate_ZeroLiquidityThresholdRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPC_URL", "wss://node.example")
	t.Setenv("PRIVATE_KEY", "0x"+testKey)
	t.Setenv("MIN_LIQUIDITY_USD", "0")

	cfg, err := Load("")
	require.NoError(t, err)

	// A zero threshold would be indistinguishable from unset downstream
	assert.True(t, cfg.MinLiquidityUSD.IsZero())
	assert.EqualError(t, cfg.Validate(), "MIN_LIQUIDITY_USD must be positive")
}
