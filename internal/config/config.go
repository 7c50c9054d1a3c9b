// Package config loads evaluator settings from the environment, with an
// optional .env file underneath.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/offchain"
)

// Base price sources.
const (
	PriceSourceStatic = "static"
	PriceSourceLive   = "live"
)

// Keys lists every environment variable Load reads.
var Keys = []string{
	"RPC_URL", "FORK_RPC_URL", "FORK_UPSTREAM_URL", "PRIVATE_KEY", "CHAIN_ID",
	"BASE_ASSET", "FACTORY", "ROUTER", "GOPLUS_URL", "DEXSCREENER_URL",
	"MIN_LIQUIDITY_USD", "MAX_FEE_PERCENT", "SIM_NOTIONAL_WEI", "SWAP_DEADLINE",
	"SWAP_GAS_LIMIT", "TX_GAS_LIMIT", "OFFCHAIN_RETRIES", "OFFCHAIN_RETRY_DELAY",
	"HTTP_TIMEOUT", "ONCHAIN_RETRIES", "BASE_PRICE_SOURCE", "BASE_PRICE_USD",
	"SIM_FUND_WEI", "START_BLOCK", "METRICS_ADDR", "DECISION_HISTORY", "LOG_LEVEL",
}

// Config holds all evaluator configuration.
type Config struct {
	// Nodes
	RPCURL          string // upstream node, read-only; ws:// for live subscriptions
	ForkRPCURL      string // local fork node the simulation signs against
	ForkUpstreamURL string // URL the fork resets from, Default: RPCURL
	PrivateKey      string
	ChainID         uint64

	// Contracts
	BaseAsset common.Address
	Factory   common.Address
	Router    common.Address

	// Off-chain services
	GoPlusURL          string
	DexscreenerURL     string
	OffChainRetries    int
	OffChainRetryDelay time.Duration
	HTTPTimeout        time.Duration

	// Thresholds
	MinLiquidityUSD decimal.Decimal
	MaxFeePercent   decimal.Decimal

	// On-chain
	OnChainRetries  int
	BasePriceSource string
	BasePriceUSD    decimal.Decimal
	StartBlock      uint64

	// Simulation
	SimNotionalWei *big.Int
	SimFundWei     *big.Int // nil leaves the fork balance untouched
	SwapDeadline   time.Duration
	SwapGasLimit   uint64
	TxGasLimit     uint64

	// Process
	MetricsAddr     string
	DecisionHistory int // decisions kept for /decisions
	LogLevel        string

	errs []error
}

// Load reads the optional env file at path, then the environment. Variables
// already present in the environment win over the file. A missing file is
// not an error; malformed values are reported by Validate.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.RPCURL = getEnv("RPC_URL", "")
	cfg.ForkRPCURL = getEnv("FORK_RPC_URL", "http://127.0.0.1:8545")
	cfg.ForkUpstreamURL = getEnv("FORK_UPSTREAM_URL", cfg.RPCURL)
	cfg.PrivateKey = strings.TrimPrefix(getEnv("PRIVATE_KEY", ""), "0x")
	cfg.ChainID = cfg.getEnvAsUint("CHAIN_ID", chain.DefaultChainID)

	cfg.BaseAsset = cfg.getEnvAsAddress("BASE_ASSET", chain.MainnetWETH)
	cfg.Factory = cfg.getEnvAsAddress("FACTORY", chain.MainnetFactoryV2)
	cfg.Router = cfg.getEnvAsAddress("ROUTER", chain.MainnetRouterV2)

	cfg.GoPlusURL = getEnv("GOPLUS_URL", offchain.DefaultGoPlusURL)
	cfg.DexscreenerURL = getEnv("DEXSCREENER_URL", offchain.DefaultDexscreenerURL)
	cfg.OffChainRetries = cfg.getEnvAsInt("OFFCHAIN_RETRIES", offchain.DefaultMaxRetries)
	cfg.OffChainRetryDelay = cfg.getEnvAsDuration("OFFCHAIN_RETRY_DELAY", offchain.DefaultRetryDelay)
	cfg.HTTPTimeout = cfg.getEnvAsDuration("HTTP_TIMEOUT", offchain.DefaultTimeout)

	cfg.MinLiquidityUSD = cfg.getEnvAsDecimal("MIN_LIQUIDITY_USD", decimal.NewFromInt(10_000))
	cfg.MaxFeePercent = cfg.getEnvAsDecimal("MAX_FEE_PERCENT", decimal.NewFromInt(15))

	cfg.OnChainRetries = cfg.getEnvAsInt("ONCHAIN_RETRIES", 0)
	cfg.BasePriceSource = strings.ToLower(getEnv("BASE_PRICE_SOURCE", PriceSourceStatic))
	cfg.BasePriceUSD = cfg.getEnvAsDecimal("BASE_PRICE_USD", decimal.NewFromInt(2000))
	cfg.StartBlock = cfg.getEnvAsUint("START_BLOCK", 0)

	cfg.SimNotionalWei = cfg.getEnvAsWei("SIM_NOTIONAL_WEI", big.NewInt(5e16))
	cfg.SimFundWei = cfg.getEnvAsWei("SIM_FUND_WEI", nil)
	cfg.SwapDeadline = cfg.getEnvAsDuration("SWAP_DEADLINE", 1200*time.Second)
	cfg.SwapGasLimit = cfg.getEnvAsUint("SWAP_GAS_LIMIT", 2_000_000)
	cfg.TxGasLimit = cfg.getEnvAsUint("TX_GAS_LIMIT", chain.DefaultGasLimit)

	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")
	cfg.DecisionHistory = cfg.getEnvAsInt("DECISION_HISTORY", 1000)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.errs...)

	if c.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if c.ForkRPCURL == "" {
		errs = append(errs, errors.New("FORK_RPC_URL is required"))
	}
	if c.PrivateKey == "" {
		errs = append(errs, errors.New("PRIVATE_KEY is required"))
	} else if _, err := c.Key(); err != nil {
		errs = append(errs, fmt.Errorf("PRIVATE_KEY: %w", err))
	}
	if c.ChainID == 0 {
		errs = append(errs, errors.New("CHAIN_ID must be positive"))
	}
	if c.BaseAsset == (common.Address{}) {
		errs = append(errs, errors.New("BASE_ASSET must not be the zero address"))
	}
	if !c.MinLiquidityUSD.IsPositive() {
		errs = append(errs, errors.New("MIN_LIQUIDITY_USD must be positive"))
	}
	if !c.MaxFeePercent.IsPositive() {
		errs = append(errs, errors.New("MAX_FEE_PERCENT must be positive"))
	}
	if c.OffChainRetries < 0 {
		errs = append(errs, errors.New("OFFCHAIN_RETRIES must not be negative"))
	}
	if c.OnChainRetries < 0 {
		errs = append(errs, errors.New("ONCHAIN_RETRIES must not be negative"))
	}
	switch c.BasePriceSource {
	case PriceSourceStatic:
		if !c.BasePriceUSD.IsPositive() {
			errs = append(errs, errors.New("BASE_PRICE_USD must be positive"))
		}
	case PriceSourceLive:
	default:
		errs = append(errs, fmt.Errorf("BASE_PRICE_SOURCE %q is not %s or %s", c.BasePriceSource, PriceSourceStatic, PriceSourceLive))
	}
	if c.SimNotionalWei != nil && c.SimNotionalWei.Sign() <= 0 {
		errs = append(errs, errors.New("SIM_NOTIONAL_WEI must be positive"))
	}
	if c.SwapDeadline <= 0 {
		errs = append(errs, errors.New("SWAP_DEADLINE must be positive"))
	}
	if c.DecisionHistory <= 0 {
		errs = append(errs, errors.New("DECISION_HISTORY must be positive"))
	}

	return errors.Join(errs...)
}

// Key parses the simulation wallet key.
func (c *Config) Key() (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(c.PrivateKey)
}

// Helper functions for parsing environment variables

func getEnv(key, defaultVal string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultVal
}

func (c *Config) invalid(key, value string, err error) {
	c.errs = append(c.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (c *Config) getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		c.invalid(key, valueStr, err)
		return defaultVal
	}
	return value
}

func (c *Config) getEnvAsUint(key string, defaultVal uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		c.invalid(key, valueStr, err)
		return defaultVal
	}
	return value
}

func (c *Config) getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		c.invalid(key, valueStr, err)
		return defaultVal
	}
	return value
}

func (c *Config) getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		c.invalid(key, valueStr, err)
		return defaultVal
	}
	return value
}

// getEnvAsWei accepts integers and exponent forms such as 5e16.
func (c *Config) getEnvAsWei(key string, defaultVal *big.Int) *big.Int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		c.invalid(key, valueStr, err)
		return defaultVal
	}
	if !value.Equal(value.Truncate(0)) {
		c.invalid(key, valueStr, errors.New("wei amount must be whole"))
		return defaultVal
	}
	return value.BigInt()
}

func (c *Config) getEnvAsAddress(key string, defaultVal common.Address) common.Address {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	if !common.IsHexAddress(valueStr) {
		c.invalid(key, valueStr, errors.New("not a hex address"))
		return defaultVal
	}
	return common.HexToAddress(valueStr)
}
