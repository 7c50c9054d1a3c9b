package simulation

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidity-event-evaluator/internal/domain"
)

// ErrZeroSpent is returned by Settle when the round trip spent nothing.
var ErrZeroSpent = errors.New("spent amount must be positive")

var hundred = decimal.NewFromInt(100)

// Settlement is the cost accounting of a finished round trip.
type Settlement struct {
	TotalGasWei     *big.Int
	RealizedLossWei *big.Int
	FeePercent      decimal.Decimal
	Suspicious      bool
}

// Settle computes the round-trip cost from wallet balances and leg gas.
//
//	loss       = final - start
//	totalGas   = sum of leg gas
//	feePercent = (loss + totalGas) / spent * 100
//
// A positive loss means the wallet ended with more than it started, which
// is flagged as suspicious.
func Settle(start, final, spent *big.Int, legs ...domain.GasReport) (Settlement, error) {
	if spent == nil || spent.Sign() <= 0 {
		return Settlement{}, ErrZeroSpent
	}

	totalGas := new(big.Int)
	for _, leg := range legs {
		if leg.Total != nil {
			totalGas.Add(totalGas, leg.Total)
		}
	}
	loss := new(big.Int).Sub(final, start)

	fee := decimal.NewFromBigInt(new(big.Int).Add(loss, totalGas), 0).
		Div(decimal.NewFromBigInt(spent, 0)).
		Mul(hundred)

	return Settlement{
		TotalGasWei:     totalGas,
		RealizedLossWei: loss,
		FeePercent:      fee,
		Suspicious:      loss.Sign() > 0,
	}, nil
}
