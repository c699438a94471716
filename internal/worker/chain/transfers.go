package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"silo-snapshots/internal/worker/model"
	"silo-snapshots/internal/worker/monitor"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

const defaultMaxRetries = 5

// Source fetches and decodes Transfer logs for a market's two share
// tokens. All RPC traffic goes through one rate limiter so replaying a
// long history does not trip node-side throttling.
type Source struct {
	backend    Backend
	limiter    *rate.Limiter
	maxRetries int
	tl         *zap.Logger
}

func NewSource(backend Backend, rpcRateLimit, maxRetries int, tl *zap.Logger) *Source {
	if rpcRateLimit <= 0 {
		rpcRateLimit = 10
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Source{
		backend:    backend,
		limiter:    rate.NewLimiter(rate.Limit(rpcRateLimit), 1),
		maxRetries: maxRetries,
		tl:         tl,
	}
}

// FetchTransfers returns every Transfer of the market's non-borrowable
// token followed by every Transfer of the silo share token over
// [fromBlock, toBlock], in the order the node emitted them. No
// interleaving across the two contracts.
func (s *Source) FetchTransfers(ctx context.Context, market model.Market, fromBlock, toBlock uint64) ([]model.TransferEvent, error) {
	var transfers []model.TransferEvent
	for _, contract := range []common.Address{market.NonBorrowableAddr, market.SiloAddress} {
		logs, err := s.filterWithRetry(ctx, contract, fromBlock, toBlock)
		if err != nil {
			return nil, fmt.Errorf("fetch transfers for %s [%d, %d]: %w", contract.Hex(), fromBlock, toBlock, err)
		}
		for _, l := range logs {
			event, ok := decodeTransfer(l)
			if !ok {
				s.tl.Warn("skipping malformed transfer log",
					zap.String("contract", contract.Hex()),
					zap.Uint64("block", l.BlockNumber),
					zap.Uint("index", l.Index))
				continue
			}
			transfers = append(transfers, event)
		}
	}
	monitor.TransferEventsFetched.WithLabelValues(market.IntegrationID).Add(float64(len(transfers)))
	return transfers, nil
}

func (s *Source) filterWithRetry(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{transferTopic}},
	}

	var logs []types.Log
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err = s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		monitor.RPCRequests.WithLabelValues("eth_getLogs").Inc()
		logs, err = s.backend.FilterLogs(ctx, query)
		if err == nil {
			return logs, nil
		}
		monitor.RPCErrors.WithLabelValues("eth_getLogs").Inc()
		s.tl.Warn("eth_getLogs failed, retrying",
			zap.String("contract", contract.Hex()),
			zap.Uint64("from", fromBlock),
			zap.Uint64("to", toBlock),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
	}
	return nil, err
}

func decodeTransfer(l types.Log) (model.TransferEvent, bool) {
	if len(l.Topics) < 3 || l.Topics[0] != transferTopic {
		return model.TransferEvent{}, false
	}
	return model.TransferEvent{
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Value:       new(big.Int).SetBytes(l.Data),
		BlockNumber: l.BlockNumber,
	}, true
}
