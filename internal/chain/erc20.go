package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidity-event-evaluator/internal/domain"
)

// ERC20 is a typed handle over a fungible token contract.
type ERC20 struct {
	address  common.Address
	contract *bind.BoundContract
}

func newERC20(address common.Address, backend bind.ContractBackend) *ERC20 {
	return &ERC20{
		address:  address,
		contract: bind.NewBoundContract(address, ERC20ABI, backend, backend, backend),
	}
}

// Address returns the token contract address.
func (t *ERC20) Address() common.Address {
	return t.address
}

func (t *ERC20) Name(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "name"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (t *ERC20) Symbol(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "symbol"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (t *ERC20) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (t *ERC20) TotalSupply(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "totalSupply"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (t *ERC20) BalanceOf(opts *bind.CallOpts, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (t *ERC20) Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Approve grants spender an allowance of amount.
func (t *ERC20) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "approve", spender, amount)
}

// Info reads name, symbol, decimals and total supply.
func (t *ERC20) Info(opts *bind.CallOpts) (domain.TokenInfo, error) {
	info := domain.TokenInfo{Address: t.address}
	var err error
	if info.Name, err = t.Name(opts); err != nil {
		return info, err
	}
	if info.Symbol, err = t.Symbol(opts); err != nil {
		return info, err
	}
	if info.Decimals, err = t.Decimals(opts); err != nil {
		return info, err
	}
	if info.TotalSupply, err = t.TotalSupply(opts); err != nil {
		return info, err
	}
	return info, nil
}
