package domain

import "github.com/ethereum/go-ethereum/common"

// PairEvent is one PairCreated log emitted by the factory.
// It is immutable and consumed exactly once by the pipeline.
type PairEvent struct {
	Token0      common.Address
	Token1      common.Address
	Pool        common.Address
	BlockNumber uint64      // block of the log, zero when injected manually
	TxHash      common.Hash // creating transaction, zero when injected manually
}

// Involves reports whether addr is one of the two pair tokens.
// Addresses are compared as decoded 20-byte values, so hex casing never matters.
func (e PairEvent) Involves(addr common.Address) bool {
	return e.Token0 == addr || e.Token1 == addr
}
