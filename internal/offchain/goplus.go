package offchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"liquidity-event-evaluator/internal/domain"
)

// DefaultGoPlusURL is the public GoPlus API base.
const DefaultGoPlusURL = "https://api.gopluslabs.io"

const goPlusService = "goplus"

type goPlusResponse struct {
	Code    int                               `json:"code"`
	Message string                            `json:"message"`
	Result  map[string]*domain.SecurityReport `json:"result"`
}

// GoPlus looks up contract-risk reports.
type GoPlus struct {
	fetcher *Fetcher
	baseURL string
	chainID uint64
}

// NewGoPlus creates a GoPlus client for chainID.
func NewGoPlus(fetcher *Fetcher, baseURL string, chainID uint64) *GoPlus {
	if baseURL == "" {
		baseURL = DefaultGoPlusURL
	}
	return &GoPlus{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), chainID: chainID}
}

// TokenSecurity returns the risk record for token. The service keys results by
// the lower-cased address; a response without that key is a MissingRecordError
// and is retried like any other failure.
func (g *GoPlus) TokenSecurity(ctx context.Context, token common.Address) (*domain.SecurityReport, error) {
	key := strings.ToLower(token.Hex())
	url := fmt.Sprintf("%s/api/v1/token_security/%d?contract_addresses=%s", g.baseURL, g.chainID, key)

	var report *domain.SecurityReport
	err := g.fetcher.Get(ctx, goPlusService, url, func(body []byte) error {
		var resp goPlusResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		r, ok := resp.Result[key]
		if !ok || r == nil {
			return &domain.MissingRecordError{Service: goPlusService, Address: token}
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
