package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/util/workerpool"
)

// PromoterService feeds compaction-selected entries into the hot-key
// cache through a bounded worker pool, decoupling compaction threads
// from cache insertion.
type PromoterService struct {
	config  *PromoterConfig
	service *HotCacheService
	pool    *workerpool.WorkerPool
	logger  *zap.Logger
}

// PromoterConfig holds promotion worker configuration
type PromoterConfig struct {
	Workers   int
	QueueSize int
}

// NewPromoterService creates a new promoter service
func NewPromoterService(cfg *PromoterConfig, svc *HotCacheService, logger *zap.Logger) *PromoterService {
	pool := workerpool.NewWorkerPool(&workerpool.Config{
		Name:       "promoter",
		MaxWorkers: cfg.Workers,
		QueueSize:  cfg.QueueSize,
		Logger:     logger,
	})

	return &PromoterService{
		config:  cfg,
		service: svc,
		pool:    pool,
		logger:  logger,
	}
}

// EnqueueBatch submits one promotion task per candidate. A full queue
// rejects the remainder of the batch; the caller may retry on the next
// compaction cycle.
func (s *PromoterService) EnqueueBatch(ctx context.Context, batch []model.Promotion) error {
	for i, p := range batch {
		p := p
		task := workerpool.Task{
			ID: fmt.Sprintf("promote-%d-%d", time.Now().UnixNano(), i),
			Fn: func(taskCtx context.Context) error {
				return s.service.Promote(taskCtx, p.InternalKey, p.Value)
			},
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Warn("Promotion batch truncated",
				zap.Int("enqueued", i),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// Enqueue blocks until the candidate is accepted or ctx is canceled
func (s *PromoterService) Enqueue(ctx context.Context, p model.Promotion) error {
	task := workerpool.Task{
		ID: fmt.Sprintf("promote-%d", time.Now().UnixNano()),
		Fn: func(taskCtx context.Context) error {
			return s.service.Promote(taskCtx, p.InternalKey, p.Value)
		},
	}
	return s.pool.SubmitWithContext(ctx, task)
}

// Stop stops the worker pool, waiting up to timeout for in-flight
// promotions. Promotions still queued when Stop is called may not run.
func (s *PromoterService) Stop(timeout time.Duration) error {
	return s.pool.Stop(timeout)
}

// Stats returns the promotion pool statistics
func (s *PromoterService) Stats() workerpool.Stats {
	return s.pool.Stats()
}
