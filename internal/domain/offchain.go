package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SecurityReport is the contract-risk record for one token.
// The risk service encodes every flag and percentage as a string ("0", "1", "0.05").
type SecurityReport struct {
	TokenName             string `json:"token_name"`
	TokenSymbol           string `json:"token_symbol"`
	TotalSupply           string `json:"total_supply"`
	HolderCount           string `json:"holder_count"`
	CreatorAddress        string `json:"creator_address"`
	CreatorPercent        string `json:"creator_percent"`
	OwnerAddress          string `json:"owner_address"`
	OwnerPercent          string `json:"owner_percent"`
	BuyTax                string `json:"buy_tax"`
	SellTax               string `json:"sell_tax"`
	IsHoneypot            string `json:"is_honeypot"`
	IsOpenSource          string `json:"is_open_source"`
	IsProxy               string `json:"is_proxy"`
	IsMintable            string `json:"is_mintable"`
	IsBlacklisted         string `json:"is_blacklisted"`
	IsWhitelisted         string `json:"is_whitelisted"`
	IsAntiWhale           string `json:"is_anti_whale"`
	IsInDex               string `json:"is_in_dex"`
	CannotBuy             string `json:"cannot_buy"`
	CannotSellAll         string `json:"cannot_sell_all"`
	HiddenOwner           string `json:"hidden_owner"`
	CanTakeBackOwnership  string `json:"can_take_back_ownership"`
	ExternalCall          string `json:"external_call"`
	SelfDestruct          string `json:"selfdestruct"`
	SlippageModifiable    string `json:"slippage_modifiable"`
	TradingCooldown       string `json:"trading_cooldown"`
	TransferPausable      string `json:"transfer_pausable"`
	AntiWhaleModifiable   string `json:"anti_whale_modifiable"`
	HoneypotWithSameOwner string `json:"honeypot_with_same_creator"`
}

// Honeypot reports whether the service flagged the token as a honeypot.
func (r *SecurityReport) Honeypot() bool {
	return r.IsHoneypot == "1"
}

// Taxes returns the buy and sell tax as fractions. Unparseable values are zero.
func (r *SecurityReport) Taxes() (buy, sell decimal.Decimal) {
	return parseFraction(r.BuyTax), parseFraction(r.SellTax)
}

func parseFraction(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DexToken is one token of a market-data pair quote.
type DexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DexLiquidity is the liquidity summary of a market-data pair quote.
type DexLiquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// DexPair is one trading-pair quote returned by the market-data service.
type DexPair struct {
	ChainID       string        `json:"chainId"`
	DexID         string        `json:"dexId"`
	URL           string        `json:"url"`
	PairAddress   string        `json:"pairAddress"`
	BaseToken     DexToken      `json:"baseToken"`
	QuoteToken    DexToken      `json:"quoteToken"`
	PriceNative   string        `json:"priceNative"`
	PriceUSD      string        `json:"priceUsd"`
	Liquidity     *DexLiquidity `json:"liquidity"`
	FDV           float64       `json:"fdv"`
	PairCreatedAt int64         `json:"pairCreatedAt"`
}

// PriceReport is the list of pair quotes for a token.
type PriceReport struct {
	Pairs []DexPair
}

// OffChainReport bundles both off-chain lookups for the counter asset.
// It is advisory data attached to a decision.
type OffChainReport struct {
	Token    common.Address
	Security *SecurityReport
	Price    *PriceReport
}
