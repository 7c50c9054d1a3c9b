// Package price supplies the USD price of the base asset used to value
// pool liquidity.
package price

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidity-event-evaluator/internal/domain"
)

// ErrNoQuote is returned when no usable base-asset quote is available.
var ErrNoQuote = errors.New("no usable base asset quote")

// Source returns the current base-asset price in USD.
type Source interface {
	BaseAssetUSD(ctx context.Context) (decimal.Decimal, error)
}

// Static is a constant price.
type Static decimal.Decimal

// BaseAssetUSD implements Source.
func (s Static) BaseAssetUSD(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(s), nil
}

// MarketLookup returns market-data quotes of a token.
type MarketLookup interface {
	Pairs(ctx context.Context, token common.Address) (*domain.PriceReport, error)
}

// Live quotes the base asset from the market-data service, using the most
// liquid pair where the base asset is the pair's base token.
type Live struct {
	market MarketLookup
	base   common.Address
}

// NewLive creates a live price source for base.
func NewLive(market MarketLookup, base common.Address) *Live {
	return &Live{market: market, base: base}
}

// BaseAssetUSD implements Source.
func (l *Live) BaseAssetUSD(ctx context.Context) (decimal.Decimal, error) {
	report, err := l.market.Pairs(ctx, l.base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote base asset: %w", err)
	}
	return BestQuote(report.Pairs, l.base)
}

// BestQuote picks the USD price of the most liquid pair whose base token is base.
func BestQuote(pairs []domain.DexPair, base common.Address) (decimal.Decimal, error) {
	var (
		best      decimal.Decimal
		bestDepth = -1.0
	)
	for _, p := range pairs {
		if !strings.EqualFold(p.BaseToken.Address, base.Hex()) {
			continue
		}
		px, err := decimal.NewFromString(p.PriceUSD)
		if err != nil || !px.IsPositive() {
			continue
		}
		depth := 0.0
		if p.Liquidity != nil {
			depth = p.Liquidity.USD
		}
		if depth > bestDepth {
			best, bestDepth = px, depth
		}
	}
	if bestDepth < 0 {
		return decimal.Zero, ErrNoQuote
	}
	return best, nil
}
