package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetSide is one side of a normalized pair.
type AssetSide struct {
	Address     common.Address
	Reserve     *big.Int
	Decimals    uint8
	Symbol      string
	Name        string
	TotalSupply *big.Int
}

// EnrichedCandidate is a pair event normalized into base and counter sides.
// Exactly one token of Event is the configured base asset.
type EnrichedCandidate struct {
	Event        PairEvent
	Block        uint64 // block all on-chain reads were pinned to
	Base         AssetSide
	Counter      AssetSide
	BaseIsToken0 bool
	Liquidity    LiquiditySnapshot
	BasePriceUSD decimal.Decimal
	LiquidityUSD decimal.Decimal
}
