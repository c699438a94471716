package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"silo-snapshots/internal/worker/model"

	"github.com/bytedance/sonic"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SNAPSHOT_CACHE_TTL       = 10 * time.Minute // 本地缓存过期时间
	SNAPSHOT_CACHE_REDIS_TTL = 25 * time.Hour   // Redis中最新快照TTL
)

// redisKey holds the latest snapshot row shared across processes; the
// local layer is keyed by integration id alone.
func redisKey(integrationID string) string {
	return fmt.Sprintf("silo_snapshots:latest:%s", integrationID)
}

// SnapshotCache supplies previously computed balance snapshots to the
// reconstructor and records new ones. Reads hit the local layer first,
// then Postgres, with the Redis latest entry overlaid on top; writes
// populate the local layer and Redis (durable rows go through the async
// DB writer, not through here).
type SnapshotCache struct {
	tl         *zap.Logger
	localCache *cache.Cache
	rds        *redis.Client
	db         *gorm.DB
}

func NewSnapshotCache(tl *zap.Logger, rds *redis.Client, db *gorm.DB) *SnapshotCache {
	return &SnapshotCache{
		tl:         tl,
		localCache: cache.New(SNAPSHOT_CACHE_TTL, time.Minute),
		rds:        rds,
		db:         db,
	}
}

// Load returns every known snapshot for the integration, keyed by block.
func (c *SnapshotCache) Load(ctx context.Context, integrationID string) (model.BlockBalances, error) {
	// 先查本地缓存
	if cached, found := c.localCache.Get(integrationID); found {
		if data, ok := cached.(model.BlockBalances); ok {
			return data.Copy(), nil
		}
	}

	// 查数据库
	var records []model.SnapshotRecord
	err := c.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("block_number ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", integrationID, err)
	}

	data := make(model.BlockBalances, len(records))
	for _, record := range records {
		bals, err := record.DecodeBalances()
		if err != nil {
			c.tl.Warn("skipping undecodable snapshot row",
				zap.String("integration_id", integrationID),
				zap.Int64("block", record.BlockNumber),
				zap.Error(err))
			continue
		}
		data[uint64(record.BlockNumber)] = bals
	}

	// Overlay the Redis latest snapshot in case another process got ahead
	// of our table.
	if latest, ok := c.loadLatestFromRedis(ctx, integrationID); ok {
		if _, exists := data[uint64(latest.BlockNumber)]; !exists {
			if bals, err := latest.DecodeBalances(); err == nil {
				data[uint64(latest.BlockNumber)] = bals
			}
		}
	}

	c.localCache.Set(integrationID, data.Copy(), cache.DefaultExpiration)
	return data, nil
}

func (c *SnapshotCache) loadLatestFromRedis(ctx context.Context, integrationID string) (model.SnapshotRecord, bool) {
	raw, err := c.rds.Get(ctx, redisKey(integrationID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.tl.Warn("redis snapshot read failed", zap.String("integration_id", integrationID), zap.Error(err))
		}
		return model.SnapshotRecord{}, false
	}
	var record model.SnapshotRecord
	if sonic.Unmarshal([]byte(raw), &record) != nil {
		return model.SnapshotRecord{}, false
	}
	return record, true
}

// Store records a freshly computed snapshot in the local layer and Redis.
func (c *SnapshotCache) Store(ctx context.Context, integrationID string, block uint64, bals model.Balances) error {
	if cached, found := c.localCache.Get(integrationID); found {
		if data, ok := cached.(model.BlockBalances); ok {
			data[block] = bals.Copy()
			c.localCache.Set(integrationID, data, cache.DefaultExpiration)
		}
	}

	record, err := model.NewSnapshotRecord(integrationID, block, bals)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s block %d: %w", integrationID, block, err)
	}
	raw, err := sonic.Marshal(record)
	if err != nil {
		return err
	}
	if err := c.rds.Set(ctx, redisKey(integrationID), raw, SNAPSHOT_CACHE_REDIS_TTL).Err(); err != nil {
		c.tl.Warn("redis snapshot write failed, continue",
			zap.String("integration_id", integrationID),
			zap.Uint64("block", block),
			zap.Error(err))
	}
	return nil
}
