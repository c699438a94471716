package worker

import (
	"context"
	"time"

	"silo-snapshots/internal/worker/config"
	"silo-snapshots/internal/worker/job"
	"silo-snapshots/internal/worker/monitor"
	"silo-snapshots/internal/worker/registry"
	"silo-snapshots/internal/worker/repository"

	"go.uber.org/zap"
)

type Core struct {
	cfg       config.Config
	tl        *zap.Logger
	repo      repository.Repository
	scheduler *job.Scheduler
	snapshot  *job.Snapshot
	metrics   *monitor.MetricsServer
}

func New(cfg config.Config, logger *zap.Logger) *Core {
	scheduler := job.NewScheduler(logger)

	repo := repository.New(cfg, logger)

	reg, err := registry.New(cfg.Markets)
	if err != nil {
		panic(err)
	}

	interval := time.Duration(cfg.Snapshot.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	// 定时：快照重建
	snapshot := job.NewSnapshot(cfg, repo, reg, logger)
	scheduler.RegisterJob("snapshot", interval, snapshot.Run)

	core := &Core{
		cfg:       cfg,
		repo:      repo,
		tl:        logger,
		scheduler: scheduler,
		snapshot:  snapshot,
		metrics:   monitor.NewMetricsServer(cfg.Monitor),
	}
	return core
}

func (c *Core) Start(ctx context.Context) {
	c.tl.Info("Starting worker core...")
	if c.metrics != nil {
		c.metrics.Run()
	}

	c.scheduler.Start(ctx)
	c.tl.Info("Worker started successfully")

	<-ctx.Done()
	c.tl.Info("Shutting down worker due to context cancellation...")
}

// Stop 优雅关闭 Core 的所有资源
func (c *Core) Stop(ctx context.Context) {
	c.tl.Info("Stopping worker core...")

	if c.scheduler != nil {
		c.scheduler.Stop(ctx)
	}

	if c.snapshot != nil {
		c.snapshot.Stop()
	}

	if c.metrics != nil {
		_ = c.metrics.Stop(ctx)
	}

	c.repo.Close()

	c.tl.Info("Worker core stopped.")
}
