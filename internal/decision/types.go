// Package decision records the outcome of evaluating one pair event.
package decision

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/filter"
)

// Outcome is the terminal result of an evaluation.
type Outcome string

const (
	OutcomeAccepted Outcome = "ACCEPTED"
	OutcomeRejected Outcome = "REJECTED" // a filter said no
	OutcomeFailed   Outcome = "FAILED"   // a stage could not complete
)

// Stage names the pipeline stage a decision ended at.
type Stage string

const (
	StageAsset      Stage = "asset"
	StageOnChain    Stage = "onchain"
	StageLiquidity  Stage = "liquidity"
	StageOffChain   Stage = "offchain"
	StageSimulation Stage = "simulation"
	StageCost       Stage = "cost"
)

// Validation errors
var (
	ErrNilDecision     = errors.New("decision is nil")
	ErrEmptyCandidate  = errors.New("candidate id is empty")
	ErrUnknownOutcome  = errors.New("outcome is not terminal")
	ErrMissingStage    = errors.New("stage is empty")
	ErrMissingReason   = errors.New("non-accepted decision has no reason")
	ErrFinishedTooSoon = errors.New("finished before started")
)

// Decision is the tagged result of one evaluation. Everything gathered up
// to the terminal stage is kept, so a rejected candidate still carries its
// enrichment and checks.
type Decision struct {
	ID          uuid.UUID
	CandidateID string
	Event       domain.PairEvent

	Outcome Outcome
	Stage   Stage
	Reason  string
	Err     error

	Checks     []filter.Result
	Candidate  *domain.EnrichedCandidate
	Report     *domain.OffChainReport // advisory only, never gates the outcome
	Simulation *domain.SimulationResult

	StartedAt  time.Time
	FinishedAt time.Time
}

// New starts a decision for ev.
func New(candidateID string, ev domain.PairEvent, startedAt time.Time) *Decision {
	return &Decision{
		ID:          uuid.New(),
		CandidateID: candidateID,
		Event:       ev,
		StartedAt:   startedAt,
	}
}

// AddChecks appends filter results to the checklist.
func (d *Decision) AddChecks(results ...filter.Result) {
	d.Checks = append(d.Checks, results...)
}

// Accept marks the candidate as having passed every stage.
func (d *Decision) Accept(now time.Time) *Decision {
	d.Outcome = OutcomeAccepted
	d.Stage = StageCost
	d.FinishedAt = now
	return d
}

// Reject ends the decision at stage because of a failed filter result.
func (d *Decision) Reject(stage Stage, result filter.Result, now time.Time) *Decision {
	d.Outcome = OutcomeRejected
	d.Stage = stage
	d.Reason = result.Reason()
	d.FinishedAt = now
	return d
}

// Fail ends the decision at stage because of err.
func (d *Decision) Fail(stage Stage, err error, now time.Time) *Decision {
	d.Outcome = OutcomeFailed
	d.Stage = stage
	d.Err = err
	if err != nil {
		d.Reason = err.Error()
	}
	d.FinishedAt = now
	return d
}

// Terminal reports whether the decision has an outcome.
func (d *Decision) Terminal() bool {
	switch d.Outcome {
	case OutcomeAccepted, OutcomeRejected, OutcomeFailed:
		return true
	}
	return false
}

// Duration is the wall time spent on the evaluation.
func (d *Decision) Duration() time.Duration {
	if d.FinishedAt.IsZero() {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

// Validate checks that d is a complete terminal decision.
func (d *Decision) Validate() error {
	if d == nil {
		return ErrNilDecision
	}
	if d.CandidateID == "" {
		return ErrEmptyCandidate
	}
	if !d.Terminal() {
		return ErrUnknownOutcome
	}
	if d.Stage == "" {
		return ErrMissingStage
	}
	if d.Outcome != OutcomeAccepted && d.Reason == "" {
		return ErrMissingReason
	}
	if d.FinishedAt.Before(d.StartedAt) {
		return ErrFinishedTooSoon
	}
	return nil
}
