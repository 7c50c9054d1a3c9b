// Package offchain queries the contract-risk and market-data services for
// the counter asset of a candidate.
package offchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"liquidity-event-evaluator/internal/domain"
)

// SecurityLookup returns the contract-risk record of a token.
type SecurityLookup interface {
	TokenSecurity(ctx context.Context, token common.Address) (*domain.SecurityReport, error)
}

// MarketLookup returns market-data quotes of a token.
type MarketLookup interface {
	Pairs(ctx context.Context, token common.Address) (*domain.PriceReport, error)
}

// Enricher runs both lookups concurrently.
type Enricher struct {
	security SecurityLookup
	market   MarketLookup
}

// NewEnricher creates an off-chain enricher.
func NewEnricher(security SecurityLookup, market MarketLookup) *Enricher {
	return &Enricher{security: security, market: market}
}

// Enrich succeeds only when both lookups succeed. Each lookup applies its own
// retry policy; the first terminal failure cancels the other.
func (e *Enricher) Enrich(ctx context.Context, token common.Address) (*domain.OffChainReport, error) {
	report := &domain.OffChainReport{Token: token}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.security.TokenSecurity(gctx, token)
		if err != nil {
			return err
		}
		report.Security = r
		return nil
	})
	g.Go(func() error {
		r, err := e.market.Pairs(gctx, token)
		if err != nil {
			return err
		}
		report.Price = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
