package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestReconcileSweeper_RequeuesStuckRows(t *testing.T) {
	mock, db, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE "core"\."webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	sweeper := NewReconcileSweeper(db, ReconcileConfig{Interval: time.Minute, Timeout: 10 * time.Minute}, zap.NewNop())
	sweeper.sweepOnce(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultReconcileConfig_AppliedWhenZero(t *testing.T) {
	mock, db, cleanup := setupTestDB(t)
	defer cleanup()
	_ = mock

	sweeper := NewReconcileSweeper(db, ReconcileConfig{}, zap.NewNop())
	assert.Equal(t, 2*time.Minute, sweeper.cfg.Interval)
	assert.Equal(t, 10*time.Minute, sweeper.cfg.Timeout)
}
