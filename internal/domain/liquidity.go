package domain

import "math/big"

// LiquiditySnapshot is the pool state read at a single pinned block.
type LiquiditySnapshot struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	PriceCumulative0   *big.Int // price0CumulativeLast
	PriceCumulative1   *big.Int // price1CumulativeLast
	InvariantK         *big.Int // kLast, zero when protocol fees are off
	BlockTimestampLast uint32
	BlockNumber        uint64
}
