package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
)

// ReconcileConfig controls the sweep cadence and the staleness threshold
// past which a processing row is assumed to belong to a crashed worker.
type ReconcileConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultReconcileConfig matches the 2-minute sweep / 10-minute timeout
// defaults named in the worker configuration.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{Interval: 2 * time.Minute, Timeout: 10 * time.Minute}
}

// ReconcileSweeper periodically resets webhook_events rows still in
// "processing" whose received_at is older than Timeout back to
// "received", so a job left behind by a worker crash no longer reads as
// in progress. It does not resubmit those rows to the worker pool.
type ReconcileSweeper struct {
	db     *gorm.DB
	cfg    ReconcileConfig
	logger *zap.Logger
	stop   chan struct{}
}

// NewReconcileSweeper constructs a sweeper bound to db.
func NewReconcileSweeper(db *gorm.DB, cfg ReconcileConfig, logger *zap.Logger) *ReconcileSweeper {
	if cfg.Interval <= 0 || cfg.Timeout <= 0 {
		cfg = DefaultReconcileConfig()
	}
	return &ReconcileSweeper{db: db, cfg: cfg, logger: logger, stop: make(chan struct{})}
}

// Run blocks, sweeping on cfg.Interval until Stop is called.
func (s *ReconcileSweeper) Run() {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce(context.Background())
		}
	}
}

// Stop halts the sweep loop.
func (s *ReconcileSweeper) Stop() {
	close(s.stop)
}

func (s *ReconcileSweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.Timeout)

	result := s.db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("status = ? AND received_at < ?", domain.WebhookProcessing, cutoff).
		Updates(map[string]any{"status": domain.WebhookReceived, "error_message": "reconciled: exceeded processing timeout"})

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("reconciliation sweep failed", zap.Error(result.Error))
		}
		return
	}
	if result.RowsAffected > 0 && s.logger != nil {
		s.logger.Warn("reconciled stuck webhook events", zap.Int64("count", result.RowsAffected))
	}
}
