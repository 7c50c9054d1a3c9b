// Package idhash derives deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"liquidity-event-evaluator/internal/domain"
)

// ComputeCandidateID computes a deterministic candidate_id using SHA256.
// Formula: SHA256(chain_id|pool|token0|token1|tx_hash|block)
// Addresses and hashes are lower-case hex. Returns hex-encoded hash (64 characters).
func ComputeCandidateID(chainID uint64, ev domain.PairEvent) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%d",
		chainID,
		strings.ToLower(ev.Pool.Hex()),
		strings.ToLower(ev.Token0.Hex()),
		strings.ToLower(ev.Token1.Hex()),
		ev.TxHash.Hex(),
		ev.BlockNumber,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
