package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/hotcache/internal/errors"
	"github.com/devrev/hotcache/internal/hotcache"
	"github.com/devrev/hotcache/internal/metrics"
	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/validation"
)

// HotCacheService wraps the hot-key cache with validation, metrics,
// and periodic info logging. Promote and Update go through the write
// lock; Get and iteration read the cache lock-free.
type HotCacheService struct {
	config    *HotCacheConfig
	cache     *hotcache.HotCache
	metrics   *metrics.Metrics
	validator *validation.Validator
	logger    *zap.Logger
	mu        sync.Mutex
	closed    atomic.Bool
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// HotCacheConfig holds hot-key cache service configuration
type HotCacheConfig struct {
	MaxKeySize   int
	MaxValueSize int
	InfoInterval time.Duration
}

// NewHotCacheService creates a new hot-key cache service.
// The metrics argument may be nil when metrics are disabled.
func NewHotCacheService(cfg *HotCacheConfig, m *metrics.Metrics, logger *zap.Logger) *HotCacheService {
	s := &HotCacheService{
		config:    cfg,
		cache:     hotcache.NewHotCache(logger),
		metrics:   m,
		validator: validation.NewValidatorWithLimits(cfg.MaxKeySize, cfg.MaxValueSize),
		logger:    logger,
		stopChan:  make(chan struct{}),
	}

	if cfg.InfoInterval > 0 {
		go s.infoLogger(cfg.InfoInterval)
	}

	return s
}

// Promote hands a compaction-selected entry to the cache. Entries whose
// key is already cached are skipped; the skip is counted, not an error.
func (s *HotCacheService) Promote(ctx context.Context, internalKey, value []byte) error {
	if s.closed.Load() {
		return errors.CacheClosed()
	}
	if err := s.validator.ValidateInternalKey(internalKey); err != nil {
		return err
	}
	if err := s.validator.ValidateValue(value); err != nil {
		return err
	}

	start := time.Now()

	s.mu.Lock()
	before := s.cache.Report().DuplicatePromotions
	s.cache.InsertFromCompaction(internalKey, value)
	skipped := s.cache.Report().DuplicatePromotions > before
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PromotionsTotal.Inc()
		s.metrics.PromoteDuration.Observe(time.Since(start).Seconds())
		s.metrics.PromotedValueBytes.Observe(float64(len(value)))
		if skipped {
			s.metrics.PromotionsSkippedTotal.Inc()
		}
	}

	return nil
}

// PromoteBatch promotes a batch of compaction candidates in the order
// given, stopping at the first error
func (s *HotCacheService) PromoteBatch(ctx context.Context, batch []model.Promotion) error {
	for _, p := range batch {
		if err := s.Promote(ctx, p.InternalKey, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a write to the cached copy of userKey, if one exists.
// It returns true when the key was cached and the entry was updated.
func (s *HotCacheService) Update(ctx context.Context, sequence uint64, vt model.ValueType, userKey, value []byte) (bool, error) {
	if s.closed.Load() {
		return false, errors.CacheClosed()
	}
	if err := s.validator.ValidateUserKey(userKey); err != nil {
		return false, err
	}
	if vt == model.TypeValue {
		if err := s.validator.ValidateValue(value); err != nil {
			return false, err
		}
	}

	start := time.Now()

	s.mu.Lock()
	hit := s.cache.UpdateIfExist(sequence, vt, userKey, value)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.UpdatesTotal.Inc()
		s.metrics.UpdateDuration.Observe(time.Since(start).Seconds())
		if hit {
			s.metrics.UpdateHitsTotal.Inc()
			if vt == model.TypeDeletion {
				s.metrics.DeletesTotal.Inc()
			}
		} else {
			s.metrics.UpdateMissesTotal.Inc()
		}
	}

	return hit, nil
}

// Get returns a snapshot of the cached entry for key, lock-free
func (s *HotCacheService) Get(key []byte) (model.HotEntry, bool) {
	return s.cache.Get(key)
}

// Contains reports whether key is cached, live or tombstoned
func (s *HotCacheService) Contains(key []byte) bool {
	return s.cache.Contains(key)
}

// NewIterator returns an iterator over the cache in ascending key order
func (s *HotCacheService) NewIterator() *hotcache.Iterator {
	return s.cache.NewIterator()
}

// Stats returns a snapshot of the cache counters
func (s *HotCacheService) Stats() model.CacheStats {
	return s.cache.Report()
}

// infoLogger periodically logs cache info and refreshes the gauges
func (s *HotCacheService) infoLogger(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cache.LogCacheInfo()
			if s.metrics != nil {
				s.metrics.UpdateCacheStats(s.cache.Report())
			}
		case <-s.stopChan:
			return
		}
	}
}

// Close stops the info logger and releases the cache. The service must
// not be used after Close returns.
func (s *HotCacheService) Close() {
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopChan)
		s.cache.LogCacheInfo()

		s.mu.Lock()
		s.cache.Close()
		s.mu.Unlock()

		s.logger.Info("Hot-key cache service closed")
	})
}
