package decision

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Summary is the JSON view of a decision served over HTTP.
type Summary struct {
	ID           uuid.UUID      `json:"id"`
	Pool         common.Address `json:"pool"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Block        uint64         `json:"block"`
	Outcome      Outcome        `json:"outcome"`
	Stage        Stage          `json:"stage"`
	Reason       string         `json:"reason,omitempty"`
	LiquidityUSD string         `json:"liquidity_usd,omitempty"`
	FeePercent   string         `json:"fee_percent,omitempty"`
	Suspicious   bool           `json:"suspicious,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// Summarize flattens d into a Summary.
func Summarize(d *Decision) Summary {
	s := Summary{
		ID:         d.ID,
		Pool:       d.Event.Pool,
		Token0:     d.Event.Token0,
		Token1:     d.Event.Token1,
		Block:      d.Event.BlockNumber,
		Outcome:    d.Outcome,
		Stage:      d.Stage,
		Reason:     d.Reason,
		StartedAt:  d.StartedAt,
		FinishedAt: d.FinishedAt,
	}
	if d.Candidate != nil {
		s.LiquidityUSD = d.Candidate.LiquidityUSD.StringFixed(2)
	}
	if d.Simulation != nil {
		s.FeePercent = d.Simulation.FeePercent.StringFixed(2)
		s.Suspicious = d.Simulation.Suspicious
	}
	return s
}
