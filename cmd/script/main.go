package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"silo-snapshots/internal/worker/config"
	"silo-snapshots/internal/worker/job"
	"silo-snapshots/internal/worker/registry"
	"silo-snapshots/internal/worker/repository"
	"silo-snapshots/pkg/logger"

	"go.uber.org/zap"
)

// 一次性回填任务

func main() {
	integrationID := flag.String("integration", "", "integration id to backfill")
	blocksArg := flag.String("blocks", "", "comma-separated block heights")
	timestampsArg := flag.String("timestamps", "", "comma-separated unix timestamps, resolved via the explorer api")
	flag.Parse()

	startTime := time.Now()
	cfg := config.InitConfig()

	logger.InitTrace("silo-snapshots", "backfill")
	ctx, span := logger.StartSpan(context.Background(), "main", "main")
	defer span.End()

	rootLogger := logger.NewLogger("backfill")
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	if *integrationID == "" {
		tl.Error("missing -integration flag")
		os.Exit(1)
	}

	blocks, err := parseUints(*blocksArg)
	if err != nil {
		tl.Error("invalid -blocks", zap.Error(err))
		os.Exit(1)
	}
	timestamps, err := parseInts(*timestampsArg)
	if err != nil {
		tl.Error("invalid -timestamps", zap.Error(err))
		os.Exit(1)
	}

	repo := repository.New(cfg, tl)
	defer repo.Close()

	reg, err := registry.New(cfg.Markets)
	if err != nil {
		tl.Error("invalid market config", zap.Error(err))
		os.Exit(1)
	}

	tl.Info("Starting silo-snapshots backfill...",
		zap.String("integration_id", *integrationID),
		zap.Int("blocks", len(blocks)),
		zap.Int("timestamps", len(timestamps)))

	backfill := job.NewBackfill(cfg, repo, reg, tl)
	defer backfill.Stop()
	if err := backfill.Run(ctx, *integrationID, blocks, timestamps); err != nil {
		tl.Error("Failed to run backfill", zap.Error(err))
		os.Exit(1)
	}
	tl.Info("Task completed successfully", zap.Duration("taken_time", time.Since(startTime)))
}

func parseUints(arg string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(arg string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
