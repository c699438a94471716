package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"silo-snapshots/internal/worker/model"
	"silo-snapshots/internal/worker/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// RoundDecimals is the precision every snapshot balance is held at.
	RoundDecimals = 6
	// scaleDecimals converts raw transfer values into whole-token units.
	scaleDecimals = 18
	// PaginationSize caps the block span of a single eth_getLogs window.
	PaginationSize = 10000
)

// ChainSource supplies the reconstructor with transfer logs and the
// share-to-asset conversion rate at historical blocks. Implemented by
// chain.Source; faked in tests.
type ChainSource interface {
	FetchTransfers(ctx context.Context, market model.Market, fromBlock, toBlock uint64) ([]model.TransferEvent, error)
	SupplyIndexAt(ctx context.Context, market model.Market, block uint64) (decimal.Decimal, error)
}

// BalanceReconstructor rebuilds per-address asset balances for one Silo
// market at requested block heights by replaying share-token transfers on
// top of the nearest cached snapshot.
type BalanceReconstructor struct {
	market model.Market
	source ChainSource
	tl     *zap.Logger
}

func NewBalanceReconstructor(market model.Market, source ChainSource, tl *zap.Logger) *BalanceReconstructor {
	return &BalanceReconstructor{
		market: market,
		source: source,
		tl:     tl.With(zap.String("integration_id", market.IntegrationID)),
	}
}

// GetBlockBalances returns a snapshot for every requested block. The
// cached data passed in is never mutated; blocks are processed in
// ascending order so earlier results seed later ones.
func (r *BalanceReconstructor) GetBlockBalances(ctx context.Context, cached model.BlockBalances, blocks []uint64) (model.BlockBalances, error) {
	newBlockData := make(model.BlockBalances)
	if len(blocks) == 0 {
		r.tl.Error("no blocks provided to GetBlockBalances")
		return newBlockData, nil
	}
	r.tl.Info("reconstructing balances", zap.String("silo", r.market.SiloAddress.Hex()), zap.Int("blocks", len(blocks)))

	cacheCopy := cached.Copy()
	for _, block := range sortedUnique(blocks) {
		bals, err := r.reconstructAt(ctx, cacheCopy, block)
		if err != nil {
			return nil, fmt.Errorf("reconstruct balances at block %d: %w", block, err)
		}
		newBlockData[block] = bals
		cacheCopy[block] = bals
	}
	return newBlockData, nil
}

func (r *BalanceReconstructor) reconstructAt(ctx context.Context, cacheCopy model.BlockBalances, block uint64) (model.Balances, error) {
	start := r.market.StartBlock
	bals := model.Balances{}
	if len(cacheCopy) > 0 {
		if prevBlock, prevBals, ok := closestCachedData(block, cacheCopy); ok {
			r.tl.Info("found cached snapshot below target",
				zap.Uint64("target", block), zap.Uint64("cached", prevBlock))
			start = prevBlock + 1
			bals = prevBals
		}
	}

	// One conversion rate per target block; every transfer in the gap is
	// priced at the target block's rate.
	supplyIndex, err := r.source.SupplyIndexAt(ctx, r.market, block)
	if err != nil {
		return nil, err
	}
	r.tl.Info("supply index", zap.Uint64("block", block), zap.String("index", supplyIndex.String()))

	startTime := time.Now()
	for start <= block {
		toBlock := min(start+PaginationSize, block)
		transfers, err := r.source.FetchTransfers(ctx, r.market, start, toBlock)
		if err != nil {
			return nil, err
		}
		for _, transfer := range transfers {
			applyTransfer(bals, transfer, supplyIndex)
		}
		monitor.SnapshotPagesFetched.WithLabelValues(r.market.IntegrationID).Inc()
		monitor.TransferEventsProcessed.WithLabelValues(r.market.IntegrationID).Add(float64(len(transfers)))
		r.tl.Debug("processed transfer page",
			zap.Uint64("from", start), zap.Uint64("to", toBlock), zap.Int("transfers", len(transfers)))
		start = toBlock + 1
	}
	monitor.SnapshotBuildDuration.WithLabelValues(r.market.IntegrationID).Observe(time.Since(startTime).Seconds())
	monitor.SnapshotHolderCount.WithLabelValues(r.market.IntegrationID).Set(float64(len(bals)))
	return bals, nil
}

// closestCachedData returns the largest cached block strictly below the
// target together with a copy of its snapshot.
func closestCachedData(block uint64, cached model.BlockBalances) (uint64, model.Balances, bool) {
	found := false
	var prevBlock uint64
	for existing := range cached {
		if existing < block && (!found || existing > prevBlock) {
			prevBlock = existing
			found = true
		}
	}
	if !found {
		return 0, nil, false
	}
	return prevBlock, cached[prevBlock].Copy(), true
}

func applyTransfer(bals model.Balances, transfer model.TransferEvent, supplyIndex decimal.Decimal) {
	// Convert shares to assets before touching balances.
	value := decimal.NewFromBigInt(transfer.Value, 0).Mul(supplyIndex)
	switch {
	case transfer.IsMint():
		addToBals(bals, transfer.To, value)
	case transfer.IsBurn():
		subtractFromBals(bals, transfer.From, value)
	default:
		subtractFromBals(bals, transfer.From, value)
		addToBals(bals, transfer.To, value)
	}
}

func addToBals(bals model.Balances, address common.Address, value decimal.Decimal) {
	amount := value.Shift(-scaleDecimals).Round(RoundDecimals)
	bals[address] = bals[address].Add(amount).Round(RoundDecimals)
}

func subtractFromBals(bals model.Balances, address common.Address, value decimal.Decimal) {
	amount := value.Shift(-scaleDecimals).Round(RoundDecimals)
	result := bals[address].Sub(amount)
	// Negative balances only arise from rounding drift; pin them to zero.
	if result.IsNegative() {
		result = decimal.Zero
	}
	bals[address] = result.Round(RoundDecimals)
}

func sortedUnique(blocks []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(blocks))
	out := make([]uint64, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
