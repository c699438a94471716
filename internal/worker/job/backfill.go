package job

import (
	"context"
	"fmt"

	"silo-snapshots/internal/worker/config"
	"silo-snapshots/internal/worker/registry"
	"silo-snapshots/internal/worker/repository"
	"silo-snapshots/pkg/explorer"

	"go.uber.org/zap"
)

// Backfill recomputes snapshots for one integration at explicit block
// heights, or at block heights resolved from wall-clock timestamps via
// the explorer API.
type Backfill struct {
	tl       *zap.Logger
	explorer *explorer.Client
	snap     *Snapshot
}

func NewBackfill(cfg config.Config, repo repository.Repository, reg *registry.Registry, tl *zap.Logger) *Backfill {
	return &Backfill{
		tl:       tl,
		explorer: explorer.NewClient(cfg.Explorer, tl),
		snap:     NewSnapshot(cfg, repo, reg, tl),
	}
}

func (b *Backfill) Run(ctx context.Context, integrationID string, blocks []uint64, timestamps []int64) error {
	for _, ts := range timestamps {
		block, err := b.explorer.GetBlockByTimestamp(ctx, ts)
		if err != nil {
			return fmt.Errorf("resolve block for timestamp %d: %w", ts, err)
		}
		b.tl.Info("resolved timestamp to block", zap.Int64("timestamp", ts), zap.Uint64("block", block))
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return fmt.Errorf("backfill needs at least one block or timestamp")
	}
	return b.snap.RunBlocks(ctx, integrationID, blocks)
}

func (b *Backfill) Stop() {
	b.snap.Stop()
}
