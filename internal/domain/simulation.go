package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SimulationLeg names one step of the forked round trip.
type SimulationLeg string

const (
	LegReset   SimulationLeg = "reset"
	LegBuy     SimulationLeg = "buy"
	LegApprove SimulationLeg = "approve"
	LegSell    SimulationLeg = "sell"
)

// GasReport is the gas accounting of one mined transaction.
type GasReport struct {
	TxHash common.Hash
	Used   uint64
	Price  *big.Int
	Total  *big.Int // Used * Price, in wei
}

// SimulationResult is the outcome of one forked buy/approve/sell round trip.
// All balances are in wei of the native asset except BoughtAmount and QuotedAmount,
// which are raw counter-asset units.
type SimulationResult struct {
	Block           uint64
	SpentAmount     *big.Int
	StartBalance    *big.Int
	QuotedAmount    *big.Int // router quote before the buy, nil if unavailable
	BoughtAmount    *big.Int
	FinalBalance    *big.Int
	BuyGas          GasReport
	ApproveGas      GasReport
	SellGas         GasReport
	TotalGasWei     *big.Int
	RealizedLossWei *big.Int // FinalBalance - StartBalance, negative when the round trip cost money
	FeePercent      decimal.Decimal // signed like RealizedLossWei; its negation is the round-trip cost
	Suspicious      bool // positive realized loss, likely a measurement artifact
}
