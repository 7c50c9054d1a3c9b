// Package stub provides an in-memory EVM backend for tests. It models ERC20
// tokens, constant-product pairs and a V2 router closely enough to run the
// evaluator end to end, and answers the anvil fork-management calls.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"liquidity-event-evaluator/internal/chain"
)

// Errors returned by the stub.
var (
	ErrUnknownContract = errors.New("stub: unknown contract")
	ErrNoSnapshot      = errors.New("stub: no snapshot to reset to")
	ErrInsufficientETH = errors.New("stub: insufficient funds for gas * price + value")
)

// Gas charged per executed method.
var gasByMethod = map[string]uint64{
	"approve": 46_000,
	"swapExactETHForTokensSupportingFeeOnTransferTokens": 125_000,
	"swapExactTokensForETHSupportingFeeOnTransferTokens": 150_000,
}

const defaultGas = 21_000

// Token is an ERC20 held by the stub.
type Token struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	TaxBps      int64 // transfer tax applied on every swap leg, in basis points

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// Pair is a constant-product pool held by the stub.
type Pair struct {
	Token0           common.Address
	Token1           common.Address
	Reserve0         *big.Int
	Reserve1         *big.Int
	Price0Cumulative *big.Int
	Price1Cumulative *big.Int
	KLast            *big.Int
	TimestampLast    uint32
}

type state struct {
	block    uint64
	tokens   map[common.Address]*Token
	pairs    map[common.Address]*Pair
	native   map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
}

// Chain implements chain.Backend and chain.RPCCaller in memory.
type Chain struct {
	mu sync.Mutex

	chainID *big.Int
	router  common.Address
	weth    common.Address

	// Fee market reported to SyncFees.
	BaseFee  *big.Int
	GasPrice *big.Int
	TipCap   *big.Int

	// Revert forces the named method to mine with status 0.
	Revert map[string]bool
	// IgnoreApprovals mines approve successfully without recording the allowance.
	IgnoreApprovals bool
	// DropReceipts makes every receipt lookup fail with ethereum.NotFound.
	DropReceipts bool
	// CallErr, when set, fails every CallContract.
	CallErr error
	// FailSubscribes fails that many SubscribeFilterLogs calls before succeeding.
	FailSubscribes int
	// History is served by FilterLogs.
	History []types.Log

	cur      *state
	snapshot *state

	calls      int
	callBlocks []*big.Int
	resets     []uint64
	sent       []*types.Transaction
	logs       chan types.Log
	kill       chan error
	subscribes int
}

var (
	_ chain.Backend   = (*Chain)(nil)
	_ chain.RPCCaller = (*Chain)(nil)
)

// NewChain creates an empty chain at block 1 with a 10 gwei base fee.
func NewChain(chainID *big.Int, weth, router common.Address) *Chain {
	return &Chain{
		chainID:  new(big.Int).Set(chainID),
		weth:     weth,
		router:   router,
		BaseFee:  big.NewInt(10_000_000_000),
		GasPrice: big.NewInt(12_000_000_000),
		TipCap:   big.NewInt(1_000_000_000),
		Revert:   make(map[string]bool),
		cur: &state{
			block:    1,
			tokens:   make(map[common.Address]*Token),
			pairs:    make(map[common.Address]*Pair),
			native:   make(map[common.Address]*big.Int),
			nonces:   make(map[common.Address]uint64),
			receipts: make(map[common.Hash]*types.Receipt),
		},
		logs: make(chan types.Log, 64),
		kill: make(chan error, 1),
	}
}

// AddToken registers an ERC20 at address.
func (c *Chain) AddToken(address common.Address, t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.balances = make(map[common.Address]*big.Int)
	t.allowances = make(map[common.Address]map[common.Address]*big.Int)
	if t.TotalSupply == nil {
		t.TotalSupply = new(big.Int)
	}
	c.cur.tokens[address] = &t
}

// AddPair registers a pool at address.
func (c *Chain) AddPair(address common.Address, p Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range []**big.Int{&p.Reserve0, &p.Reserve1, &p.Price0Cumulative, &p.Price1Cumulative, &p.KLast} {
		if *v == nil {
			*v = new(big.Int)
		}
	}
	c.cur.pairs[address] = &p
}

// SetNativeBalance sets the native balance of account.
func (c *Chain) SetNativeBalance(account common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.native[account] = new(big.Int).Set(wei)
}

// SetTokenBalance sets the balance of owner in a registered token.
func (c *Chain) SetTokenBalance(token, owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.cur.tokens[token]; ok {
		t.balances[owner] = new(big.Int).Set(amount)
	}
}

// SetNonce sets the transaction count of account.
func (c *Chain) SetNonce(account common.Address, nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.nonces[account] = nonce
}

// SetBlock moves the head to block.
func (c *Chain) SetBlock(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.block = block
}

// Snapshot records the current state as the target of anvil_reset.
func (c *Chain) Snapshot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = c.cur.clone()
}

// TokenBalance returns the balance of owner in token.
func (c *Chain) TokenBalance(token, owner common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.cur.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(t.balance(owner))
}

// Calls returns the number of backend and RPC calls served.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// CallBlocks returns the block argument of every CallContract.
func (c *Chain) CallBlocks() []*big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*big.Int(nil), c.callBlocks...)
}

// Resets returns the block of every anvil_reset.
func (c *Chain) Resets() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.resets...)
}

// Sent returns every transaction accepted by SendTransaction.
func (c *Chain) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// Subscribes returns the number of successful log subscriptions.
func (c *Chain) Subscribes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

// Emit delivers a log to the active subscription.
func (c *Chain) Emit(log types.Log) {
	c.logs <- log
}

// FailSubscription ends the active subscription with err.
func (c *Chain) FailSubscription(err error) {
	c.kill <- err
}

// PairCreatedLog builds a factory PairCreated log.
func PairCreatedLog(factory, token0, token1, pair common.Address, index int64, block uint64) types.Log {
	ev := chain.FactoryABI.Events["PairCreated"]
	data, err := ev.Inputs.NonIndexed().Pack(pair, big.NewInt(index))
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address:     factory,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(token0.Bytes()), common.BytesToHash(token1.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(index)),
		Index:       uint(index),
	}
}

// ChainID implements chain.Backend.
func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return new(big.Int).Set(c.chainID), nil
}

// BlockNumber implements chain.Backend.
func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.cur.block, nil
}

// BalanceAt implements chain.Backend. The block argument is ignored.
func (c *Chain) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return new(big.Int).Set(c.cur.nativeOf(account)), nil
}

// NonceAt implements chain.Backend.
func (c *Chain) NonceAt(_ context.Context, account common.Address, _ *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.cur.nonces[account], nil
}

// PendingNonceAt implements bind.ContractTransactor.
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.NonceAt(ctx, account, nil)
}

// TransactionReceipt implements chain.Backend.
func (c *Chain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	r, ok := c.cur.receipts[hash]
	if !ok || c.DropReceipts {
		return nil, ethereum.NotFound
	}
	cp := *r
	return &cp, nil
}

// HeaderByNumber implements bind.ContractTransactor.
func (c *Chain) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	h := &types.Header{Number: new(big.Int).SetUint64(c.cur.block)}
	if c.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(c.BaseFee)
	}
	return h, nil
}

// SuggestGasPrice implements bind.ContractTransactor.
func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return new(big.Int).Set(c.GasPrice), nil
}

// SuggestGasTipCap implements bind.ContractTransactor.
func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return new(big.Int).Set(c.TipCap), nil
}

// EstimateGas implements bind.ContractTransactor.
func (c *Chain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return defaultGas, nil
}

// CodeAt implements bind.ContractCaller.
func (c *Chain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

// PendingCodeAt implements bind.ContractTransactor.
func (c *Chain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

// FilterLogs implements bind.ContractFilterer. It serves History within
// the query's block range, in the order History holds them.
func (c *Chain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	var out []types.Log
	for _, l := range c.History {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// SubscribeFilterLogs implements bind.ContractFilterer. Logs passed to Emit
// are forwarded to ch until the subscription is closed.
func (c *Chain) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.mu.Lock()
	c.calls++
	if c.FailSubscribes > 0 {
		c.FailSubscribes--
		c.mu.Unlock()
		return nil, errors.New("stub: subscription refused")
	}
	c.subscribes++
	logs, kill := c.logs, c.kill
	c.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		for {
			select {
			case err := <-kill:
				return err
			case l := <-logs:
				select {
				case ch <- l:
				case <-quit:
					return nil
				}
			case <-quit:
				return nil
			}
		}
	}), nil
}

// CallContract implements bind.ContractCaller for the token, pair and router ABIs.
func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.callBlocks = append(c.callBlocks, block)
	if c.CallErr != nil {
		return nil, c.CallErr
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, ErrUnknownContract
	}
	to := *msg.To

	switch {
	case c.cur.tokens[to] != nil:
		return c.callToken(c.cur.tokens[to], msg.Data)
	case c.cur.pairs[to] != nil:
		return c.callPair(c.cur.pairs[to], msg.Data)
	case to == c.router:
		return c.callRouter(msg.Data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownContract, to.Hex())
}

func (c *Chain) callToken(t *Token, data []byte) ([]byte, error) {
	method, args, err := decode(chain.ERC20ABI, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(t.Name)
	case "symbol":
		return method.Outputs.Pack(t.Symbol)
	case "decimals":
		return method.Outputs.Pack(t.Decimals)
	case "totalSupply":
		return method.Outputs.Pack(t.TotalSupply)
	case "balanceOf":
		return method.Outputs.Pack(t.balance(args[0].(common.Address)))
	case "allowance":
		return method.Outputs.Pack(t.allowance(args[0].(common.Address), args[1].(common.Address)))
	}
	return nil, fmt.Errorf("stub: token method %s is not callable", method.Name)
}

func (c *Chain) callPair(p *Pair, data []byte) ([]byte, error) {
	method, _, err := decode(chain.PairABI, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "token0":
		return method.Outputs.Pack(p.Token0)
	case "token1":
		return method.Outputs.Pack(p.Token1)
	case "getReserves":
		return method.Outputs.Pack(p.Reserve0, p.Reserve1, p.TimestampLast)
	case "price0CumulativeLast":
		return method.Outputs.Pack(p.Price0Cumulative)
	case "price1CumulativeLast":
		return method.Outputs.Pack(p.Price1Cumulative)
	case "kLast":
		return method.Outputs.Pack(p.KLast)
	}
	return nil, fmt.Errorf("stub: pair method %s is not callable", method.Name)
}

func (c *Chain) callRouter(data []byte) ([]byte, error) {
	method, args, err := decode(chain.RouterABI, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "WETH":
		return method.Outputs.Pack(c.weth)
	case "getAmountsOut":
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)
		if len(path) != 2 {
			return nil, errors.New("stub: only two-hop paths are supported")
		}
		_, reserveIn, reserveOut, err := c.cur.pairFor(path[0], path[1])
		if err != nil {
			return nil, err
		}
		out := amountOut(amountIn, reserveIn, reserveOut)
		return method.Outputs.Pack([]*big.Int{new(big.Int).Set(amountIn), out})
	}
	return nil, fmt.Errorf("stub: router method %s is not callable", method.Name)
}

// SendTransaction implements bind.ContractTransactor. Transactions are mined
// immediately; a failing execution mines with status 0 and still pays gas.
func (c *Chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fmt.Errorf("stub: recover sender: %w", err)
	}
	if want := c.cur.nonces[from]; tx.Nonce() != want {
		return fmt.Errorf("stub: nonce %d for %s, expected %d", tx.Nonce(), from.Hex(), want)
	}
	if tx.To() == nil {
		return errors.New("stub: contract creation is not supported")
	}

	name, execute, err := c.plan(from, *tx.To(), tx.Data(), tx.Value())
	if err != nil {
		return err
	}

	gas, ok := gasByMethod[name]
	if !ok {
		gas = defaultGas
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gas), tx.GasPrice())
	balance := c.cur.nativeOf(from)
	if balance.Cmp(new(big.Int).Add(fee, tx.Value())) < 0 {
		return ErrInsufficientETH
	}

	c.cur.nonces[from]++
	c.cur.native[from] = new(big.Int).Sub(balance, fee)

	status := types.ReceiptStatusSuccessful
	if c.Revert[name] || execute() != nil {
		status = types.ReceiptStatusFailed
	}

	c.cur.receipts[tx.Hash()] = &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		TxHash:            tx.Hash(),
		GasUsed:           gas,
		EffectiveGasPrice: new(big.Int).Set(tx.GasPrice()),
		BlockNumber:       new(big.Int).SetUint64(c.cur.block + 1),
	}
	c.sent = append(c.sent, tx)
	return nil
}

// plan decodes a transaction and returns a closure that applies it. The
// closure validates before mutating, so a failed execution changes nothing.
func (c *Chain) plan(from, to common.Address, data []byte, value *big.Int) (string, func() error, error) {
	if t := c.cur.tokens[to]; t != nil {
		method, args, err := decode(chain.ERC20ABI, data)
		if err != nil {
			return "", nil, err
		}
		if method.Name != "approve" {
			return "", nil, fmt.Errorf("stub: token method %s is not supported", method.Name)
		}
		return method.Name, func() error {
			if !c.IgnoreApprovals {
				t.setAllowance(from, args[0].(common.Address), args[1].(*big.Int))
			}
			return nil
		}, nil
	}

	if to != c.router {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownContract, to.Hex())
	}

	method, args, err := decode(chain.RouterABI, data)
	if err != nil {
		return "", nil, err
	}
	switch method.Name {
	case "swapExactETHForTokensSupportingFeeOnTransferTokens":
		minOut, path, recipient := args[0].(*big.Int), args[1].([]common.Address), args[2].(common.Address)
		return method.Name, func() error { return c.buy(from, recipient, value, minOut, path) }, nil
	case "swapExactTokensForETHSupportingFeeOnTransferTokens":
		amountIn, minOut := args[0].(*big.Int), args[1].(*big.Int)
		path, recipient := args[2].([]common.Address), args[3].(common.Address)
		return method.Name, func() error { return c.sell(from, recipient, amountIn, minOut, path) }, nil
	}
	return "", nil, fmt.Errorf("stub: router method %s is not supported", method.Name)
}

func (c *Chain) buy(from, recipient common.Address, value, minOut *big.Int, path []common.Address) error {
	if len(path) != 2 || path[0] != c.weth {
		return errors.New("stub: buy path must be [WETH, token]")
	}
	pair, reserveIn, reserveOut, err := c.cur.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	token := c.cur.tokens[path[1]]
	if token == nil {
		return ErrUnknownContract
	}

	out := amountOut(value, reserveIn, reserveOut)
	received := new(big.Int).Sub(out, token.tax(out))
	if out.Sign() == 0 || received.Cmp(minOut) < 0 {
		return errors.New("stub: INSUFFICIENT_OUTPUT_AMOUNT")
	}

	c.cur.native[from] = new(big.Int).Sub(c.cur.nativeOf(from), value)
	pair.apply(path[0], value, out)
	token.credit(recipient, received)
	return nil
}

func (c *Chain) sell(from, recipient common.Address, amountIn, minOut *big.Int, path []common.Address) error {
	if len(path) != 2 || path[1] != c.weth {
		return errors.New("stub: sell path must be [token, WETH]")
	}
	token := c.cur.tokens[path[0]]
	if token == nil {
		return ErrUnknownContract
	}
	if token.balance(from).Cmp(amountIn) < 0 {
		return errors.New("stub: TRANSFER_FROM_FAILED balance")
	}
	if token.allowance(from, c.router).Cmp(amountIn) < 0 {
		return errors.New("stub: TRANSFER_FROM_FAILED allowance")
	}
	pair, reserveIn, reserveOut, err := c.cur.pairFor(path[0], path[1])
	if err != nil {
		return err
	}

	arrived := new(big.Int).Sub(amountIn, token.tax(amountIn))
	out := amountOut(arrived, reserveIn, reserveOut)
	if out.Sign() == 0 || out.Cmp(minOut) < 0 {
		return errors.New("stub: INSUFFICIENT_OUTPUT_AMOUNT")
	}

	token.credit(from, new(big.Int).Neg(amountIn))
	pair.apply(path[0], arrived, out)
	c.cur.native[recipient] = new(big.Int).Add(c.cur.nativeOf(recipient), out)
	return nil
}

// CallContext implements chain.RPCCaller for the anvil methods the forker uses.
func (c *Chain) CallContext(_ context.Context, _ interface{}, method string, args ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	switch method {
	case "anvil_reset":
		if c.snapshot == nil {
			return ErrNoSnapshot
		}
		block := c.snapshot.block
		if len(args) == 1 {
			if params, ok := args[0].(map[string]interface{}); ok {
				if forking, ok := params["forking"].(map[string]interface{}); ok {
					if b, ok := forking["blockNumber"].(uint64); ok {
						block = b
					}
				}
			}
		}
		c.cur = c.snapshot.clone()
		c.cur.block = block
		c.resets = append(c.resets, block)
		return nil
	case "anvil_mine":
		c.cur.block++
		return nil
	case "anvil_setBalance":
		if len(args) != 2 {
			return errors.New("stub: anvil_setBalance takes two arguments")
		}
		account, ok := args[0].(common.Address)
		if !ok {
			return errors.New("stub: anvil_setBalance account must be an address")
		}
		encoded, ok := args[1].(string)
		if !ok {
			return errors.New("stub: anvil_setBalance balance must be hex")
		}
		wei, err := hexutil.DecodeBig(encoded)
		if err != nil {
			return err
		}
		c.cur.native[account] = wei
		return nil
	}
	return fmt.Errorf("stub: method %s is not supported", method)
}

func decode(contract abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("stub: calldata too short")
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

// amountOut is the V2 getAmountOut formula with the 0.3% fee.
func amountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	withFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	num := new(big.Int).Mul(withFee, reserveOut)
	den := new(big.Int).Add(new(big.Int).Mul(reserveIn, big.NewInt(1000)), withFee)
	return num.Div(num, den)
}

func (s *state) nativeOf(account common.Address) *big.Int {
	if b, ok := s.native[account]; ok {
		return b
	}
	return new(big.Int)
}

func (s *state) pairFor(in, out common.Address) (*Pair, *big.Int, *big.Int, error) {
	for _, p := range s.pairs {
		switch {
		case p.Token0 == in && p.Token1 == out:
			return p, p.Reserve0, p.Reserve1, nil
		case p.Token1 == in && p.Token0 == out:
			return p, p.Reserve1, p.Reserve0, nil
		}
	}
	return nil, nil, nil, errors.New("stub: no pair for path")
}

// apply moves amountIn of tokenIn into the pool and amountOut of the other token out.
func (p *Pair) apply(tokenIn common.Address, amountIn, amountOut *big.Int) {
	if tokenIn == p.Token0 {
		p.Reserve0 = new(big.Int).Add(p.Reserve0, amountIn)
		p.Reserve1 = new(big.Int).Sub(p.Reserve1, amountOut)
		return
	}
	p.Reserve1 = new(big.Int).Add(p.Reserve1, amountIn)
	p.Reserve0 = new(big.Int).Sub(p.Reserve0, amountOut)
}

func (t *Token) tax(amount *big.Int) *big.Int {
	if t.TaxBps <= 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(t.TaxBps))
	return fee.Div(fee, big.NewInt(10_000))
}

func (t *Token) balance(owner common.Address) *big.Int {
	if b, ok := t.balances[owner]; ok {
		return b
	}
	return new(big.Int)
}

func (t *Token) credit(owner common.Address, delta *big.Int) {
	t.balances[owner] = new(big.Int).Add(t.balance(owner), delta)
}

func (t *Token) allowance(owner, spender common.Address) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func (t *Token) setAllowance(owner, spender common.Address, amount *big.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

func (s *state) clone() *state {
	out := &state{
		block:    s.block,
		tokens:   make(map[common.Address]*Token, len(s.tokens)),
		pairs:    make(map[common.Address]*Pair, len(s.pairs)),
		native:   make(map[common.Address]*big.Int, len(s.native)),
		nonces:   make(map[common.Address]uint64, len(s.nonces)),
		receipts: make(map[common.Hash]*types.Receipt),
	}
	for addr, t := range s.tokens {
		cp := *t
		cp.TotalSupply = new(big.Int).Set(t.TotalSupply)
		cp.balances = make(map[common.Address]*big.Int, len(t.balances))
		for k, v := range t.balances {
			cp.balances[k] = new(big.Int).Set(v)
		}
		cp.allowances = make(map[common.Address]map[common.Address]*big.Int, len(t.allowances))
		for owner, m := range t.allowances {
			cp.allowances[owner] = make(map[common.Address]*big.Int, len(m))
			for spender, v := range m {
				cp.allowances[owner][spender] = new(big.Int).Set(v)
			}
		}
		out.tokens[addr] = &cp
	}
	for addr, p := range s.pairs {
		cp := *p
		cp.Reserve0 = new(big.Int).Set(p.Reserve0)
		cp.Reserve1 = new(big.Int).Set(p.Reserve1)
		cp.Price0Cumulative = new(big.Int).Set(p.Price0Cumulative)
		cp.Price1Cumulative = new(big.Int).Set(p.Price1Cumulative)
		cp.KLast = new(big.Int).Set(p.KLast)
		out.pairs[addr] = &cp
	}
	for k, v := range s.native {
		out.native[k] = new(big.Int).Set(v)
	}
	for k, v := range s.nonces {
		out.nonces[k] = v
	}
	return out
}
