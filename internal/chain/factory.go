package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidity-event-evaluator/internal/domain"
)

var (
	// MainnetFactoryV2 is the Uniswap V2 factory on Ethereum mainnet.
	MainnetFactoryV2 = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")

	// MainnetWETH is wrapped ether on Ethereum mainnet.
	MainnetWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	// PairCreatedTopic is the topic0 of the factory PairCreated event.
	PairCreatedTopic = FactoryABI.Events["PairCreated"].ID
)

// ErrNotPairCreated is returned when a log is not a PairCreated event.
var ErrNotPairCreated = errors.New("log is not a PairCreated event")

// ParsePairCreated decodes a factory PairCreated log.
func ParsePairCreated(log types.Log) (domain.PairEvent, error) {
	if len(log.Topics) != 3 || log.Topics[0] != PairCreatedTopic {
		return domain.PairEvent{}, ErrNotPairCreated
	}

	values, err := FactoryABI.Unpack("PairCreated", log.Data)
	if err != nil {
		return domain.PairEvent{}, fmt.Errorf("unpack PairCreated: %w", err)
	}
	pool, ok := values[0].(common.Address)
	if !ok {
		return domain.PairEvent{}, fmt.Errorf("unpack PairCreated: unexpected pair type %T", values[0])
	}

	return domain.PairEvent{
		Token0:      common.BytesToAddress(log.Topics[1].Bytes()),
		Token1:      common.BytesToAddress(log.Topics[2].Bytes()),
		Pool:        pool,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}
