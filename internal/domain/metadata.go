package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo is ERC20 metadata fetched per evaluation. It is never cached across events.
type TokenInfo struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}
