package decision

import (
	"fmt"
	"strings"
)

// Markdown renders d as a short Markdown report.
func Markdown(d *Decision) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Candidate %s\n\n", d.Event.Pool.Hex()))
	sb.WriteString(fmt.Sprintf("## Outcome: %s at %s\n\n", d.Outcome, d.Stage))
	if d.Reason != "" {
		sb.WriteString(fmt.Sprintf("Reason: %s\n\n", d.Reason))
	}
	sb.WriteString(fmt.Sprintf("- Decision: %s\n", d.ID))
	sb.WriteString(fmt.Sprintf("- Candidate: %s\n", d.CandidateID))
	sb.WriteString(fmt.Sprintf("- Tokens: %s / %s\n", d.Event.Token0.Hex(), d.Event.Token1.Hex()))
	if d.Event.BlockNumber > 0 {
		sb.WriteString(fmt.Sprintf("- Event block: %d\n", d.Event.BlockNumber))
	}
	sb.WriteString("\n")

	// Checklist
	if len(d.Checks) > 0 {
		sb.WriteString("## Checks\n\n")
		sb.WriteString("| # | Check | Threshold | Actual | Pass |\n")
		sb.WriteString("|---|-------|-----------|--------|------|\n")
		for i, c := range d.Checks {
			passStr := "PASS"
			if !c.Pass {
				passStr = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, c.Name, c.Threshold, c.Actual, passStr))
		}
		sb.WriteString("\n")
	}

	// Pool
	if c := d.Candidate; c != nil {
		sb.WriteString("## Pool\n\n")
		sb.WriteString(fmt.Sprintf("- Block: %d\n", c.Block))
		sb.WriteString(fmt.Sprintf("- Base: %s (%s) reserve %s\n", c.Base.Symbol, c.Base.Address.Hex(), c.Base.Reserve))
		sb.WriteString(fmt.Sprintf("- Counter: %s (%s) reserve %s\n", c.Counter.Symbol, c.Counter.Address.Hex(), c.Counter.Reserve))
		sb.WriteString(fmt.Sprintf("- Liquidity: $%s at $%s per base\n\n", c.LiquidityUSD.StringFixed(2), c.BasePriceUSD.StringFixed(2)))
	}

	// Off-chain
	if r := d.Report; r != nil {
		sb.WriteString("## Off-chain\n\n")
		if s := r.Security; s != nil {
			buy, sell := s.Taxes()
			sb.WriteString(fmt.Sprintf("- Honeypot: %t\n", s.Honeypot()))
			sb.WriteString(fmt.Sprintf("- Buy tax: %s, sell tax: %s\n", buy, sell))
		}
		if r.Price != nil {
			sb.WriteString(fmt.Sprintf("- Market pairs: %d\n", len(r.Price.Pairs)))
		}
		sb.WriteString("\n")
	}

	// Simulation
	if s := d.Simulation; s != nil {
		sb.WriteString("## Simulation\n\n")
		sb.WriteString(fmt.Sprintf("- Spent: %s wei\n", s.SpentAmount))
		sb.WriteString(fmt.Sprintf("- Bought: %s\n", s.BoughtAmount))
		sb.WriteString(fmt.Sprintf("- Total gas: %s wei\n", s.TotalGasWei))
		sb.WriteString(fmt.Sprintf("- Realized loss: %s wei\n", s.RealizedLossWei))
		sb.WriteString(fmt.Sprintf("- Fee: %s%%\n", s.FeePercent.StringFixed(2)))
		if s.Suspicious {
			sb.WriteString("- Suspicious: round trip ended above its start balance\n")
		}
	}

	return sb.String()
}
