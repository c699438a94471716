package snapshot

import (
	"context"
	"strconv"
	"time"

	"silo-snapshots/internal/worker/model"
	"silo-snapshots/internal/worker/writer"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DbSnapshotWriter struct {
	db *gorm.DB
	tl *zap.Logger
}

func NewDbSnapshotWriter(db *gorm.DB, tl *zap.Logger) writer.BatchWriter[model.SnapshotRecord] {
	return &DbSnapshotWriter{db: db, tl: tl}
}

func (w *DbSnapshotWriter) BWrite(ctx context.Context, records []model.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	records = deduplicateRecords(records)

	newCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	const batchSize = 100
	const retryCount = 3

	var err error
	for range retryCount {
		for i := 0; i < len(records); i += batchSize {
			end := min(i+batchSize, len(records))
			batch := records[i:end]

			err = w.db.WithContext(newCtx).Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "integration_id"},
					{Name: "block_number"},
				},
				DoUpdates: clause.Assignments(map[string]any{
					"holder_count": gorm.Expr("EXCLUDED.holder_count"),
					"balances":     gorm.Expr("EXCLUDED.balances"),
					"updated_at":   gorm.Expr("EXCLUDED.updated_at"),
				}),
			}).CreateInBatches(batch, batchSize).Error

			if err != nil {
				w.tl.Warn("❌ PG insert failed", zap.Error(err))
				break
			}
		}

		if err == nil {
			break
		}
	}

	if err != nil {
		w.tl.Warn("❌ PG write failed after retries", zap.Error(err), zap.Int("records", len(records)))
		return err
	}
	return nil
}

func (w *DbSnapshotWriter) Close() error {
	return nil
}

// deduplicateRecords keeps one row per (integration, block); a later
// computation of the same block wins.
func deduplicateRecords(records []model.SnapshotRecord) []model.SnapshotRecord {
	m := make(map[string]int, len(records))
	res := make([]model.SnapshotRecord, 0, len(records))
	for _, r := range records {
		key := r.IntegrationID + "|" + strconv.FormatInt(r.BlockNumber, 10)
		if idx, ok := m[key]; ok {
			res[idx] = r
			continue
		}
		m[key] = len(res)
		res = append(res, r)
	}
	return res
}
