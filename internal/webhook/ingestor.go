// Package webhook accepts inbound CRM webhook payloads, records them
// idempotently, and dispatches enrichment to a bounded background worker
// pool without blocking the response.
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pool"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// Event is the parsed shape of one inbound webhook object.
type Event struct {
	ID         string          `json:"id"`
	HookAction string          `json:"hook_action"`
	Attributes EventAttributes `json:"attributes"`
}

// EventAttributes is the subset of the attributes object the ingestor
// needs for idempotency and the downstream pipeline input.
type EventAttributes struct {
	UpdatedAt time.Time `json:"updated_at"`
	Customer  struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"customer"`
}

// Intake reports the counts returned synchronously to the webhook caller.
type Intake struct {
	Received   int `json:"received"`
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
}

// Ingestor is the Webhook Ingestor: a thin, fast intake path backed by a
// bounded worker pool that runs the enrichment pipeline asynchronously.
type Ingestor struct {
	db       *gorm.DB
	pool     *pool.GoroutinePool
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// New constructs an Ingestor.
func New(db *gorm.DB, workers *pool.GoroutinePool, pl *pipeline.Pipeline, logger *zap.Logger) *Ingestor {
	return &Ingestor{db: db, pool: workers, pipeline: pl, logger: logger}
}

// Ingest parses a single JSON object or array of objects, records each
// idempotently keyed on (lead_id, updated_at), and dispatches any newly
// accepted event to the background worker pool. The caller returns 200
// to the webhook sender as soon as Ingest returns, before any enrichment
// work completes.
func (i *Ingestor) Ingest(ctx context.Context, body []byte) (Intake, error) {
	events, err := parseEvents(body)
	if err != nil {
		return Intake{}, types.New(types.KindValidation, "malformed webhook payload").WithCause(err)
	}

	intake := Intake{Received: len(events)}

	for _, ev := range events {
		if ev.ID == "" || ev.Attributes.UpdatedAt.IsZero() {
			if i.logger != nil {
				i.logger.Warn("skipping malformed webhook event, missing id or attributes.updated_at",
					zap.String("lead_id", ev.ID))
			}
			continue
		}

		accepted, err := i.recordIdempotently(ctx, ev)
		if err != nil {
			if i.logger != nil {
				i.logger.Error("failed to record webhook event, skipping", zap.String("lead_id", ev.ID), zap.Error(err))
			}
			continue
		}
		if !accepted {
			intake.Duplicates++
			continue
		}

		intake.Processed++
		i.dispatch(ev)
	}

	return intake, nil
}

func parseEvents(body []byte) ([]Event, error) {
	trimmed := firstNonSpace(body)
	if trimmed == '[' {
		var events []Event
		err := json.Unmarshal(body, &events)
		return events, err
	}
	var single Event
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []Event{single}, nil
}

func firstNonSpace(body []byte) byte {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

// recordIdempotently inserts a received row, ignoring the operation on a
// (lead_id, updated_at) conflict. It reports accepted=false on conflict.
func (i *Ingestor) recordIdempotently(ctx context.Context, ev Event) (accepted bool, err error) {
	raw, _ := json.Marshal(ev)
	row := domain.WebhookEvent{
		ID:         uuid.New(),
		LeadID:     ev.ID,
		UpdatedAt:  ev.Attributes.UpdatedAt,
		HookAction: ev.HookAction,
		PayloadRaw: domain.JSON(raw),
		ReceivedAt: time.Now(),
		Status:     domain.WebhookReceived,
	}

	result := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lead_id"}, {Name: "updated_at"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// dispatch submits the enrichment job to the bounded worker pool. Per the
// concurrency model, cancellation of the originating request is never
// propagated to this job.
func (i *Ingestor) dispatch(ev Event) {
	if i.pool == nil {
		return
	}
	err := i.pool.Submit(context.Background(), func(ctx context.Context) error {
		return i.runJob(ctx, ev)
	})
	if err != nil && i.logger != nil {
		i.logger.Error("failed to submit enrichment job", zap.String("lead_id", ev.ID), zap.Error(err))
	}
}

func (i *Ingestor) runJob(ctx context.Context, ev Event) error {
	if err := i.transition(ctx, ev, domain.WebhookProcessing, ""); err != nil && i.logger != nil {
		i.logger.Warn("transition to processing failed", zap.String("lead_id", ev.ID), zap.Error(err))
	}

	result := i.pipeline.Run(ctx, pipeline.Input{
		LeadID:       ev.ID,
		CustomerName: ev.Attributes.Customer.Name,
		Phone:        ev.Attributes.Customer.Phone,
		Email:        ev.Attributes.Customer.Email,
	})

	if result.Err != nil || !result.Dispatched {
		msg := ""
		if result.Err != nil {
			msg = result.Err.Error()
		}
		if err := i.transition(ctx, ev, domain.WebhookFailed, msg); err != nil && i.logger != nil {
			i.logger.Warn("transition to failed failed", zap.String("lead_id", ev.ID), zap.Error(err))
		}
		return result.Err
	}

	if err := i.transition(ctx, ev, domain.WebhookCompleted, ""); err != nil && i.logger != nil {
		i.logger.Warn("transition to completed failed", zap.String("lead_id", ev.ID), zap.Error(err))
	}
	return nil
}

// transition moves a webhook event's status forward, scoped by
// (lead_id, updated_at). A transition affecting zero rows is logged by
// the caller but never rolls back prior transitions.
func (i *Ingestor) transition(ctx context.Context, ev Event, status domain.WebhookStatus, errMessage string) error {
	updates := map[string]any{"status": status}
	if status != domain.WebhookReceived {
		now := time.Now()
		updates["processed_at"] = now
	}
	if errMessage != "" {
		updates["error_message"] = errMessage
	}

	return i.db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("lead_id = ? AND updated_at = ?", ev.ID, ev.Attributes.UpdatedAt).
		Updates(updates).Error
}
