package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type CascadeReconciler interface {
	ReconcileCascades(ctx context.Context, batchSize int) (int, error)
}

type RatingRecomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

type ReconcilerConfig struct {
	CascadeInterval time.Duration
	RatingInterval  time.Duration
	BatchSize       int
}

// Reconciler управляет фоновыми задачами сверки
type Reconciler struct {
	scheduler gocron.Scheduler
	payments  CascadeReconciler
	ratings   RatingRecomputer
	cfg       ReconcilerConfig
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
}

func NewReconciler(payments CascadeReconciler, ratings RatingRecomputer, cfg ReconcilerConfig, logger *zap.Logger) (*Reconciler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		scheduler: scheduler,
		payments:  payments,
		ratings:   ratings,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"payment-cascades", cfg.CascadeInterval, r.reconcileCascades},
		{"expert-ratings", cfg.RatingInterval, r.recomputeRatings},
	}

	for _, job := range jobs {
		// Один экземпляр задачи за раз; пропущенные запуски переносятся
		_, err := scheduler.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.run),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			cancel()
			_ = scheduler.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	return r, nil
}

// Start запускает фоновые задачи
func (r *Reconciler) Start() {
	r.logger.Info("Starting reconciler",
		zap.Duration("cascade_interval", r.cfg.CascadeInterval),
		zap.Duration("rating_interval", r.cfg.RatingInterval),
	)
	r.scheduler.Start()
}

// Stop прерывает текущие задачи и останавливает планировщик
func (r *Reconciler) Stop() error {
	r.logger.Info("Stopping reconciler")
	r.cancel()
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (r *Reconciler) reconcileCascades() {
	processed, err := r.payments.ReconcileCascades(r.ctx, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("Payment cascade sweep failed", zap.Int("processed", processed), zap.Error(err))
		return
	}
	if processed > 0 {
		r.logger.Info("Payment cascade sweep completed", zap.Int("processed", processed))
	}
}

func (r *Reconciler) recomputeRatings() {
	recomputed, err := r.ratings.RecomputeAll(r.ctx)
	if err != nil {
		r.logger.Error("Rating sweep failed", zap.Int("recomputed", recomputed), zap.Error(err))
		return
	}
	r.logger.Debug("Rating sweep completed", zap.Int("recomputed", recomputed))
}
