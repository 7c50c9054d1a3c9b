package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Reserves is the decoded getReserves() output.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Pair is a typed handle over a constant-product pool.
type Pair struct {
	address  common.Address
	contract *bind.BoundContract
}

func newPair(address common.Address, backend bind.ContractBackend) *Pair {
	return &Pair{
		address:  address,
		contract: bind.NewBoundContract(address, PairABI, backend, backend, backend),
	}
}

// Address returns the pool address.
func (p *Pair) Address() common.Address {
	return p.address
}

func (p *Pair) GetReserves(opts *bind.CallOpts) (Reserves, error) {
	var out []interface{}
	if err := p.contract.Call(opts, &out, "getReserves"); err != nil {
		return Reserves{}, err
	}
	return Reserves{
		Reserve0:           *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Reserve1:           *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		BlockTimestampLast: *abi.ConvertType(out[2], new(uint32)).(*uint32),
	}, nil
}

func (p *Pair) Price0CumulativeLast(opts *bind.CallOpts) (*big.Int, error) {
	return p.uint256(opts, "price0CumulativeLast")
}

func (p *Pair) Price1CumulativeLast(opts *bind.CallOpts) (*big.Int, error) {
	return p.uint256(opts, "price1CumulativeLast")
}

func (p *Pair) KLast(opts *bind.CallOpts) (*big.Int, error) {
	return p.uint256(opts, "kLast")
}

func (p *Pair) uint256(opts *bind.CallOpts, method string) (*big.Int, error) {
	var out []interface{}
	if err := p.contract.Call(opts, &out, method); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
