package job

import (
	"context"
	"fmt"
	"time"

	"silo-snapshots/internal/worker/cache"
	"silo-snapshots/internal/worker/chain"
	"silo-snapshots/internal/worker/config"
	"silo-snapshots/internal/worker/model"
	"silo-snapshots/internal/worker/registry"
	"silo-snapshots/internal/worker/repository"
	"silo-snapshots/internal/worker/service"
	"silo-snapshots/internal/worker/writer"
	"silo-snapshots/internal/worker/writer/snapshot"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Snapshot runs the balance reconstruction for every registered market
// against the current chain head and hands the results to the async
// writers.
type Snapshot struct {
	cfg      config.Config
	tl       *zap.Logger
	reg      *registry.Registry
	source   *chain.Source
	cache    *cache.SnapshotCache
	dbWriter *writer.AsyncBatchWriter[model.SnapshotRecord]
	mqWriter *writer.AsyncBatchWriter[model.SnapshotRecord]
}

func NewSnapshot(cfg config.Config, repo repository.Repository, reg *registry.Registry, tl *zap.Logger) *Snapshot {
	dbWriter := writer.NewAsyncBatchWriter(tl, snapshot.NewDbSnapshotWriter(repo.GetDB(), tl), 100, 500*time.Millisecond, "snapshot_db_writer", 1)
	mqWriter := writer.NewAsyncBatchWriter(tl, snapshot.NewKafkaSnapshotWriter(repo.GetMQ(), tl, cfg.Kafka.TopicSnapshot), 100, 500*time.Millisecond, "snapshot_mq_writer", 1)
	dbWriter.Start(context.Background())
	mqWriter.Start(context.Background())

	return &Snapshot{
		cfg:      cfg,
		tl:       tl,
		reg:      reg,
		source:   chain.NewSource(repo.GetEvmClient(), cfg.Snapshot.RPCRateLimit, cfg.Snapshot.RPCMaxRetries, tl),
		cache:    cache.NewSnapshotCache(tl, repo.GetRDB(), repo.GetDB()),
		dbWriter: dbWriter,
		mqWriter: mqWriter,
	}
}

func (j *Snapshot) Run(ctx context.Context) error {
	head, err := j.source.Head(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain head: %w", err)
	}
	j.tl.Info("snapshot run", zap.Uint64("head", head), zap.Int("markets", len(j.reg.All())))

	// Markets are independent of each other; each one still replays its
	// own history sequentially.
	p := pool.New().WithMaxGoroutines(4)
	for _, market := range j.reg.All() {
		m := market
		p.Go(func() {
			if err := j.runMarket(ctx, m, []uint64{head}); err != nil {
				j.tl.Error("market snapshot failed",
					zap.String("integration_id", m.IntegrationID),
					zap.Uint64("head", head),
					zap.Error(err))
			}
		})
	}
	p.Wait()
	return nil
}

func (j *Snapshot) runMarket(ctx context.Context, market model.Market, blocks []uint64) error {
	cached, err := j.cache.Load(ctx, market.IntegrationID)
	if err != nil {
		return err
	}

	reconstructor := service.NewBalanceReconstructor(market, j.source, j.tl)
	result, err := reconstructor.GetBlockBalances(ctx, cached, blocks)
	if err != nil {
		return err
	}

	for block, bals := range result {
		if err := j.cache.Store(ctx, market.IntegrationID, block, bals); err != nil {
			j.tl.Warn("snapshot cache store failed",
				zap.String("integration_id", market.IntegrationID),
				zap.Uint64("block", block),
				zap.Error(err))
		}
		record, err := model.NewSnapshotRecord(market.IntegrationID, block, bals)
		if err != nil {
			return err
		}
		j.dbWriter.MustSubmit(record)
		j.mqWriter.Submit(record)
		j.tl.Info("snapshot recorded",
			zap.String("integration_id", market.IntegrationID),
			zap.Uint64("block", block),
			zap.Int("holders", len(bals)))
	}
	return nil
}

// RunBlocks reconstructs one market at explicit block heights. Used by
// the backfill script.
func (j *Snapshot) RunBlocks(ctx context.Context, integrationID string, blocks []uint64) error {
	market, err := j.reg.Get(integrationID)
	if err != nil {
		return err
	}
	return j.runMarket(ctx, market, blocks)
}

func (j *Snapshot) Stop() {
	j.dbWriter.Close()
	j.mqWriter.Close()
}
