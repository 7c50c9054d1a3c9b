package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Default transaction parameters.
const (
	DefaultGasLimit = 200_000
	DefaultChainID  = 1
)

// ErrNoWallet is returned by transaction helpers on a read-only client.
var ErrNoWallet = errors.New("chain client has no wallet")

// FeeData is the fee snapshot taken by SyncFees.
type FeeData struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Client owns the node connection, the wallet identity, memoized contract
// handles, cached fee data and the nonce counter.
//
// Fee data and nonces are only refreshed by SyncFees and SyncNonce.
// Overrides is computed from the cached values without network reads.
type Client struct {
	backend    Backend
	key        *ecdsa.PrivateKey
	wallet     common.Address
	chainID    *big.Int
	gasLimit   uint64
	routerAddr common.Address
	nonces     *NonceManager

	mu     sync.Mutex
	tokens map[common.Address]*ERC20
	pairs  map[common.Address]*Pair
	router *Router

	feeMu sync.RWMutex
	fees  *FeeData
}

// ClientOptions contains configuration for creating a Client.
type ClientOptions struct {
	Backend    Backend
	PrivateKey *ecdsa.PrivateKey // nil for a read-only client
	ChainID    *big.Int          // Default: 1
	GasLimit   uint64            // Default: 200000
	Router     common.Address    // Default: mainnet V2 router
}

// NewClient creates a client. It performs no network calls.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Backend == nil {
		return nil, errors.New("chain: backend is required")
	}

	chainID := opts.ChainID
	if chainID == nil {
		chainID = big.NewInt(DefaultChainID)
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}

	router := opts.Router
	if router == (common.Address{}) {
		router = MainnetRouterV2
	}

	c := &Client{
		backend:    opts.Backend,
		key:        opts.PrivateKey,
		chainID:    new(big.Int).Set(chainID),
		gasLimit:   gasLimit,
		routerAddr: router,
		nonces:     NewNonceManager(),
		tokens:     make(map[common.Address]*ERC20),
		pairs:      make(map[common.Address]*Pair),
	}
	if opts.PrivateKey != nil {
		c.wallet = crypto.PubkeyToAddress(opts.PrivateKey.PublicKey)
	}
	return c, nil
}

// Wallet returns the sender address, zero for a read-only client.
func (c *Client) Wallet() common.Address {
	return c.wallet
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// ERC20 returns the memoized token handle for address.
func (c *Client) ERC20(address common.Address) *ERC20 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[address]; ok {
		return t
	}
	t := newERC20(address, c.backend)
	c.tokens[address] = t
	return t
}

// Pair returns the memoized pool handle for address.
func (c *Client) Pair(address common.Address) *Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pairs[address]; ok {
		return p
	}
	p := newPair(address, c.backend)
	c.pairs[address] = p
	return p
}

// Router returns the memoized router handle.
func (c *Client) Router() *Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.router == nil {
		c.router = newRouter(c.routerAddr, c.backend)
	}
	return c.router
}

// SyncNonce reads the wallet transaction count and starts a new nonce session.
func (c *Client) SyncNonce(ctx context.Context) error {
	if c.key == nil {
		return ErrNoWallet
	}
	nonce, err := c.backend.NonceAt(ctx, c.wallet, nil)
	if err != nil {
		return fmt.Errorf("sync nonce: %w", err)
	}
	c.nonces.Reset(nonce)
	return nil
}

// NextNonce allocates the next nonce of the current session.
func (c *Client) NextNonce() (uint64, error) {
	return c.nonces.Allocate()
}

// NonceState returns the current counter.
func (c *Client) NonceState() NonceState {
	return c.nonces.State()
}

// SyncFees reads the current fee market once and caches it.
// MaxFeePerGas follows the usual 2*baseFee + tip estimate, or the legacy
// gas price on chains without a base fee.
func (c *Client) SyncFees(ctx context.Context) error {
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync fees: header: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("sync fees: gas price: %w", err)
	}

	fees := &FeeData{GasPrice: gasPrice}
	if head.BaseFee != nil {
		tip, err := c.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return fmt.Errorf("sync fees: tip cap: %w", err)
		}
		fees.MaxPriorityFeePerGas = tip
		fees.MaxFeePerGas = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	} else {
		fees.MaxPriorityFeePerGas = new(big.Int)
		fees.MaxFeePerGas = new(big.Int).Set(gasPrice)
	}

	c.feeMu.Lock()
	c.fees = fees
	c.feeMu.Unlock()
	return nil
}

// Fees returns a copy of the cached fee data, nil before SyncFees.
func (c *Client) Fees() *FeeData {
	c.feeMu.RLock()
	defer c.feeMu.RUnlock()
	if c.fees == nil {
		return nil
	}
	return &FeeData{
		GasPrice:             new(big.Int).Set(c.fees.GasPrice),
		MaxFeePerGas:         new(big.Int).Set(c.fees.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(c.fees.MaxPriorityFeePerGas),
	}
}

// Overrides builds transaction options from cached state: gas price from the
// last synced MaxFeePerGas, the gas limit ceiling, chain id, sender, and a
// freshly allocated nonce. The nonce is consumed, so the caller must send
// the transaction before requesting the next overrides.
func (c *Client) Overrides(ctx context.Context) (*bind.TransactOpts, error) {
	if c.key == nil {
		return nil, ErrNoWallet
	}
	fees := c.Fees()
	if fees == nil {
		return nil, fmt.Errorf("overrides: fees: %w", ErrNotSynced)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("overrides: signer: %w", err)
	}
	nonce, err := c.nonces.Allocate()
	if err != nil {
		return nil, fmt.Errorf("overrides: nonce: %w", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasPrice = fees.MaxFeePerGas
	opts.GasLimit = c.gasLimit
	return opts, nil
}

// CallOpts returns read options pinned to block, or latest when block is nil.
func (c *Client) CallOpts(ctx context.Context, block *big.Int) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, BlockNumber: block, From: c.wallet}
}

// BalanceOf returns the wallet balance of token.
func (c *Client) BalanceOf(ctx context.Context, token common.Address, block *big.Int) (*big.Int, error) {
	return c.ERC20(token).BalanceOf(c.CallOpts(ctx, block), c.wallet)
}

// NativeBalance returns the wallet balance of the native asset.
func (c *Client) NativeBalance(ctx context.Context, block *big.Int) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, c.wallet, block)
}

// LatestBlockNumber returns the head block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// Receipt returns the receipt of a mined transaction.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, hash)
}
