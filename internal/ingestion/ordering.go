package ingestion

import (
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/core/types"
)

// ErrInvalidOrdering is returned when logs are not properly ordered.
var ErrInvalidOrdering = errors.New("logs are not in deterministic order")

// SortLogs orders logs by (block ASC, log_index ASC).
// This provides deterministic ordering based on blockchain order.
func SortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		return compareLogs(&logs[i], &logs[j]) < 0
	})
}

// ValidateLogOrdering checks if logs are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateLogOrdering(logs []types.Log) error {
	for i := 1; i < len(logs); i++ {
		if compareLogs(&logs[i-1], &logs[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareLogs returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (block ASC, log_index ASC)
func compareLogs(a, b *types.Log) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.Index != b.Index {
		if a.Index < b.Index {
			return -1
		}
		return 1
	}
	return 0
}
