package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/devrev/hotcache/internal/config"
	"github.com/devrev/hotcache/internal/metrics"
	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/server"
	"github.com/devrev/hotcache/internal/service"
	"github.com/devrev/hotcache/internal/workload"
)

func main() {
	var (
		configPath = pflag.String("config", "", "path to config file (falls back to CONFIG_PATH, then defaults)")
		duration   = pflag.Duration("duration", 0, "override workload duration")
		readers    = pflag.Int("readers", 0, "override number of reader goroutines")
		seed       = pflag.Int64("seed", 0, "override workload seed")
	)
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *duration > 0 {
		cfg.Workload.Duration = *duration
	}
	if *readers > 0 {
		cfg.Workload.Readers = *readers
	}
	if *seed != 0 {
		cfg.Workload.Seed = *seed
	}

	logger, err := initLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("node_id", cfg.Node.NodeID),
		zap.Int("keys", cfg.Workload.Keys),
		zap.Int("hot_keys", cfg.Workload.HotKeys),
		zap.Duration("duration", cfg.Workload.Duration))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Node.NodeID)
	}

	cacheSvc := service.NewHotCacheService(
		&service.HotCacheConfig{
			MaxKeySize:   cfg.Cache.MaxKeySize,
			MaxValueSize: cfg.Cache.MaxValueSize,
			InfoInterval: cfg.Cache.InfoInterval,
		},
		m,
		logger,
	)
	defer cacheSvc.Close()

	promoterSvc := service.NewPromoterService(
		&service.PromoterConfig{
			Workers:   cfg.Promoter.Workers,
			QueueSize: cfg.Promoter.QueueSize,
		},
		cacheSvc,
		logger,
	)
	defer promoterSvc.Stop(10 * time.Second)

	if cfg.Metrics.Enabled {
		metricsServer := server.NewMetricsServer(
			&server.MetricsServerConfig{
				Port: cfg.Metrics.Port,
				Path: cfg.Metrics.Path,
			},
			m,
			cacheSvc.Stats,
			logger,
		)
		if err := metricsServer.Start(); err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
		defer metricsServer.Stop()
	}

	gen, err := workload.NewGenerator(&workload.Config{
		Keys:      cfg.Workload.Keys,
		ValueSize: cfg.Workload.ValueSize,
		ZipfS:     cfg.Workload.ZipfS,
		ZipfV:     cfg.Workload.ZipfV,
		Seed:      cfg.Workload.Seed,
	})
	if err != nil {
		logger.Fatal("Failed to build workload generator", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Workload.Duration)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			logger.Info("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Seed the cache the way a compaction cycle would
	seedBatch := gen.HotSet(cfg.Workload.HotKeys, 1)
	if err := promoterSvc.EnqueueBatch(ctx, seedBatch); err != nil {
		logger.Warn("Initial promotion batch truncated", zap.Error(err))
	}

	var wg sync.WaitGroup
	var sequence atomic.Uint64
	sequence.Store(uint64(len(seedBatch)) + 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runWriter(ctx, cfg, cacheSvc, gen, &sequence, logger)
	}()

	for i := 0; i < cfg.Workload.Readers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runReader(ctx, cacheSvc, id, logger)
		}(i)
	}

	wg.Wait()

	stats := cacheSvc.Stats()
	logger.Info("Workload finished",
		zap.Uint64("puts", stats.Puts),
		zap.Uint64("hits", stats.Hits),
		zap.String("hit_ratio", fmt.Sprintf("%.3f", stats.HitRatio())),
		zap.Uint64("entries", stats.Entries),
		zap.Uint64("tombstones", stats.Tombstones),
		zap.Int64("bytes", stats.Bytes))
}

// runWriter drives the update path with Zipf-skewed writes until ctx
// expires. Sequence numbers are strictly increasing across all writes.
func runWriter(ctx context.Context, cfg *config.Config, svc *service.HotCacheService, gen *workload.Generator, sequence *atomic.Uint64, logger *zap.Logger) {
	deleteEvery := 0
	if cfg.Workload.DeleteFrac > 0 {
		deleteEvery = int(1 / cfg.Workload.DeleteFrac)
	}

	writes := 0
	for ctx.Err() == nil {
		rank := gen.NextRank()
		seq := sequence.Add(1)
		writes++

		vt := model.TypeValue
		var value []byte
		if deleteEvery > 0 && writes%deleteEvery == 0 {
			vt = model.TypeDeletion
		} else {
			value = gen.ValueAt(rank, seq)
		}

		if _, err := svc.Update(ctx, seq, vt, gen.KeyAt(rank), value); err != nil {
			logger.Error("Update failed", zap.Error(err))
			return
		}
	}

	logger.Info("Writer finished", zap.Int("writes", writes))
}

// runReader repeatedly scans the cache, checking that iteration yields
// strictly ascending keys and that live entries carry a value.
func runReader(ctx context.Context, svc *service.HotCacheService, id int, logger *zap.Logger) {
	scans := 0
	for ctx.Err() == nil {
		it := svc.NewIterator()
		var prev []byte
		for it.SeekToFirst(); it.Valid(); it.Next() {
			entry := it.Entry()
			if prev != nil && bytes.Compare(prev, entry.Key) >= 0 {
				logger.Error("Iterator order violation",
					zap.Int("reader_id", id),
					zap.ByteString("prev", prev),
					zap.ByteString("key", entry.Key))
				return
			}
			if !entry.Tag.IsTombstone() && entry.Value == nil {
				logger.Error("Live entry without value",
					zap.Int("reader_id", id),
					zap.ByteString("key", entry.Key))
				return
			}
			prev = entry.Key
		}
		scans++
	}

	logger.Info("Reader finished", zap.Int("reader_id", id), zap.Int("scans", scans))
}

// loadConfig resolves the config path from the flag, then CONFIG_PATH,
// then falls back to defaults when neither names a file.
func loadConfig(flagPath string) (*config.Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// initLogger initializes the zap logger from the logging config
func initLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "console" {
		zc.Encoding = "console"
	}
	return zc.Build()
}
