package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TransientFetchError is an off-chain lookup that still failed after every retry.
type TransientFetchError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// MissingRecordError means the service answered but had no entry for the address.
type MissingRecordError struct {
	Service string
	Address common.Address
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("%s: no record for %s", e.Service, e.Address.Hex())
}

// InvalidPairError means neither token of the pair is the configured base asset.
type InvalidPairError struct {
	Pool   common.Address
	Token0 common.Address
	Token1 common.Address
	Base   common.Address
}

func (e *InvalidPairError) Error() string {
	return fmt.Sprintf("pair %s (%s, %s) does not contain base asset %s",
		e.Pool.Hex(), e.Token0.Hex(), e.Token1.Hex(), e.Base.Hex())
}

// SimulationFailure is a forked transaction that reverted or never produced a receipt.
type SimulationFailure struct {
	Leg    SimulationLeg
	TxHash common.Hash
	Err    error
}

func (e *SimulationFailure) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("simulation %s: %v", e.Leg, e.Err)
	}
	return fmt.Sprintf("simulation %s (tx %s): %v", e.Leg, e.TxHash.Hex(), e.Err)
}

func (e *SimulationFailure) Unwrap() error {
	return e.Err
}
