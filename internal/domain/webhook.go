package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus is the event lifecycle state: received -> processing ->
// {completed, failed}. No state reverses.
type WebhookStatus string

const (
	WebhookReceived   WebhookStatus = "received"
	WebhookProcessing WebhookStatus = "processing"
	WebhookCompleted  WebhookStatus = "completed"
	WebhookFailed     WebhookStatus = "failed"
)

// WebhookEvent records one inbound CRM webhook event. (LeadID, UpdatedAt)
// is unique and is the idempotency key; all status transitions are
// scoped by both fields together.
type WebhookEvent struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	LeadID      string        `gorm:"column:lead_id;uniqueIndex:idx_webhook_events_lead_updated"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;uniqueIndex:idx_webhook_events_lead_updated"`
	HookAction  string        `gorm:"column:hook_action"`
	PayloadRaw  JSON          `gorm:"column:payload_raw"`
	ReceivedAt  time.Time     `gorm:"column:received_at"`
	ProcessedAt *time.Time    `gorm:"column:processed_at"`
	Status      WebhookStatus `gorm:"column:status"`
	ErrorMessage string       `gorm:"column:error_message"`
}

func (WebhookEvent) TableName() string { return "core.webhook_events" }

// InboundLeadTracking records one advertising-platform lead intake,
// separate from the CRM webhook flow because it has its own source
// identity space and create-lead round trip.
type InboundLeadTracking struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SourceLeadID       string     `gorm:"column:source_lead_id;uniqueIndex"`
	TargetSystemLeadID string     `gorm:"column:target_system_lead_id"`
	EnrichmentStatus   string     `gorm:"column:enrichment_status"`
	LatencyMillis      int64      `gorm:"column:latency_millis"`
	CreatedAt          time.Time
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

func (InboundLeadTracking) TableName() string { return "core.inbound_lead_tracking" }

// ProviderHealthRecord is the row shape of core.provider_health_records,
// one row per outbound provider client with its last observed outcome.
// No code path reads or writes it; the /ready provider sub-check calls
// the client directly.
type ProviderHealthRecord struct {
	Provider     string    `gorm:"column:provider;primaryKey"`
	LastSuccess  *time.Time `gorm:"column:last_success"`
	LastFailure  *time.Time `gorm:"column:last_failure"`
	LastError    string    `gorm:"column:last_error"`
	ConsecutiveFailures int `gorm:"column:consecutive_failures"`
	UpdatedAt    time.Time
}

func (ProviderHealthRecord) TableName() string { return "core.provider_health_records" }
