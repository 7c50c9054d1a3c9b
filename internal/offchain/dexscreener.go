package offchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"liquidity-event-evaluator/internal/domain"
)

// DefaultDexscreenerURL is the public Dexscreener API base.
const DefaultDexscreenerURL = "https://api.dexscreener.com"

const dexscreenerService = "dexscreener"

type dexscreenerResponse struct {
	SchemaVersion string           `json:"schemaVersion"`
	Pairs         []domain.DexPair `json:"pairs"`
}

// Dexscreener looks up market-data pair quotes.
type Dexscreener struct {
	fetcher *Fetcher
	baseURL string
}

// NewDexscreener creates a Dexscreener client.
func NewDexscreener(fetcher *Fetcher, baseURL string) *Dexscreener {
	if baseURL == "" {
		baseURL = DefaultDexscreenerURL
	}
	return &Dexscreener{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// Pairs returns every quoted pair of token. A null or empty pair list is a
// MissingRecordError.
func (d *Dexscreener) Pairs(ctx context.Context, token common.Address) (*domain.PriceReport, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, token.Hex())

	var report *domain.PriceReport
	err := d.fetcher.Get(ctx, dexscreenerService, url, func(body []byte) error {
		var resp dexscreenerResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(resp.Pairs) == 0 {
			return &domain.MissingRecordError{Service: dexscreenerService, Address: token}
		}
		report = &domain.PriceReport{Pairs: resp.Pairs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
