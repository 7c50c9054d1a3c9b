package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCCaller issues raw JSON-RPC calls. *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

var _ RPCCaller = (*rpc.Client)(nil)

// Forker drives the fork-management methods of a local anvil node.
type Forker struct {
	rpc      RPCCaller
	upstream string
}

// NewForker creates a Forker that re-forks from the upstream JSON-RPC URL.
func NewForker(caller RPCCaller, upstreamURL string) *Forker {
	return &Forker{rpc: caller, upstream: upstreamURL}
}

// Reset re-forks the local node at block. Nonces and balances revert to
// their upstream values at that block.
func (f *Forker) Reset(ctx context.Context, block uint64) error {
	params := map[string]interface{}{
		"forking": map[string]interface{}{
			"jsonRpcUrl":  f.upstream,
			"blockNumber": block,
		},
	}
	if err := f.rpc.CallContext(ctx, nil, "anvil_reset", params); err != nil {
		return fmt.Errorf("anvil_reset at block %d: %w", block, err)
	}
	return nil
}

// Mine mines one block so pending transactions get receipts.
func (f *Forker) Mine(ctx context.Context) error {
	if err := f.rpc.CallContext(ctx, nil, "anvil_mine"); err != nil {
		return fmt.Errorf("anvil_mine: %w", err)
	}
	return nil
}

// SetBalance overwrites the native balance of account.
func (f *Forker) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	if err := f.rpc.CallContext(ctx, nil, "anvil_setBalance", account, hexutil.EncodeBig(wei)); err != nil {
		return fmt.Errorf("anvil_setBalance %s: %w", account.Hex(), err)
	}
	return nil
}
