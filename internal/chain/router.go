package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MainnetRouterV2 is the Uniswap V2 router on Ethereum mainnet.
var MainnetRouterV2 = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

// Router is a typed handle over a V2 router. Only the fee-on-transfer swap
// variants are exposed since they tolerate taxed tokens.
type Router struct {
	address  common.Address
	contract *bind.BoundContract
}

func newRouter(address common.Address, backend bind.ContractBackend) *Router {
	return &Router{
		address:  address,
		contract: bind.NewBoundContract(address, RouterABI, backend, backend, backend),
	}
}

// Address returns the router address.
func (r *Router) Address() common.Address {
	return r.address
}

// GetAmountsOut quotes amountIn along path. The last element is the expected output.
func (r *Router) GetAmountsOut(opts *bind.CallOpts, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	var out []interface{}
	if err := r.contract.Call(opts, &out, "getAmountsOut", amountIn, path); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

// SwapExactETHForTokens buys path[len-1] with opts.Value of the native asset.
func (r *Router) SwapExactETHForTokens(opts *bind.TransactOpts, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Transaction, error) {
	return r.contract.Transact(opts, "swapExactETHForTokensSupportingFeeOnTransferTokens", amountOutMin, path, to, deadline)
}

// SwapExactTokensForETH sells amountIn of path[0] for the native asset.
func (r *Router) SwapExactTokensForETH(opts *bind.TransactOpts, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Transaction, error) {
	return r.contract.Transact(opts, "swapExactTokensForETHSupportingFeeOnTransferTokens", amountIn, amountOutMin, path, to, deadline)
}
