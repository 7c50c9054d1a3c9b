package ingestion

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

func TestSortLogs(t *testing.T) {
	logs := []types.Log{
		{BlockNumber: 12, Index: 0},
		{BlockNumber: 10, Index: 5},
		{BlockNumber: 10, Index: 1},
		{BlockNumber: 11, Index: 3},
	}

	SortLogs(logs)

	want := [][2]uint64{{10, 1}, {10, 5}, {11, 3}, {12, 0}}
	for i, w := range want {
		if logs[i].BlockNumber != w[0] || uint64(logs[i].Index) != w[1] {
			t.Errorf("position %d: got (%d, %d), want (%d, %d)", i, logs[i].BlockNumber, logs[i].Index, w[0], w[1])
		}
	}
	if err := ValidateLogOrdering(logs); err != nil {
		t.Errorf("sorted logs should validate, got %v", err)
	}
}

func TestValidateLogOrdering(t *testing.T) {
	tests := []struct {
		name string
		logs []types.Log
		want error
	}{
		{"empty", nil, nil},
		{"single", []types.Log{{BlockNumber: 1}}, nil},
		{"ordered", []types.Log{{BlockNumber: 1, Index: 1}, {BlockNumber: 1, Index: 2}, {BlockNumber: 2}}, nil},
		{"duplicate", []types.Log{{BlockNumber: 1, Index: 1}, {BlockNumber: 1, Index: 1}}, ErrInvalidOrdering},
		{"reversed", []types.Log{{BlockNumber: 2}, {BlockNumber: 1}}, ErrInvalidOrdering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateLogOrdering(tt.logs); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
