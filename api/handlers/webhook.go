package handlers

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pool"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/webhook"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// WebhookHandler serves the two inbound webhook routes: the CRM webhook
// (delegated entirely to the Webhook Ingestor) and the advertising-
// platform webhook (create-lead on the CRM, then enrichment attempt).
type WebhookHandler struct {
	db       *gorm.DB
	ingestor *webhook.Ingestor
	crm      *crm.Client
	pipeline *pipeline.Pipeline
	workers  *pool.GoroutinePool
	adsKey   string
	logger   *zap.Logger
}

// NewWebhookHandler constructs a WebhookHandler. adsKey is the shared
// secret the advertising-platform route compares against its google_key
// query parameter.
func NewWebhookHandler(db *gorm.DB, ingestor *webhook.Ingestor, crmClient *crm.Client, pl *pipeline.Pipeline, workers *pool.GoroutinePool, adsKey string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{db: db, ingestor: ingestor, crm: crmClient, pipeline: pl, workers: workers, adsKey: adsKey, logger: logger}
}

// HandleC2S serves POST /api/v1/webhooks/c2s. Token auth for this route
// is applied at the router by the WebhookAuth middleware before the
// request reaches this handler.
func (h *WebhookHandler) HandleC2S(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteErrorMessage(w, types.KindValidation, "failed to read request body", h.logger)
		return
	}

	intake, err := h.ingestor.Ingest(r.Context(), body)
	if err != nil {
		if apiErr, ok := err.(*types.Error); ok {
			WriteError(w, apiErr, h.logger)
			return
		}
		WriteError(w, types.Wrap(err, "webhook intake"), h.logger)
		return
	}

	WriteSuccess(w, map[string]any{
		"status":     "received",
		"received":   intake.Received,
		"processed":  intake.Processed,
		"duplicates": intake.Duplicates,
	})
}

// googleAdsLeadRequest is the advertising-platform webhook's payload
// shape: a flat customer record plus the platform's own lead id.
type googleAdsLeadRequest struct {
	SourceLeadID string `json:"lead_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

// HandleGoogleAds serves POST /api/v1/webhooks/google-ads?google_key=…:
// creates the lead on the target CRM, records intake tracking, and
// dispatches enrichment to the background worker pool.
func (h *WebhookHandler) HandleGoogleAds(w http.ResponseWriter, r *http.Request) {
	suppliedKey := r.URL.Query().Get("google_key")
	if h.adsKey == "" || subtle.ConstantTimeCompare([]byte(suppliedKey), []byte(h.adsKey)) != 1 {
		WriteErrorMessage(w, types.KindAuthRejected, "google_key mismatch", h.logger)
		return
	}

	var req googleAdsLeadRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.SourceLeadID == "" || req.Name == "" {
		WriteErrorMessage(w, types.KindValidation, "lead_id and name are required", h.logger)
		return
	}

	leadID, err := h.crm.CreateLead(r.Context(), crm.CreateLeadAttributes{Name: req.Name, Phone: req.Phone, Email: req.Email})
	if err != nil {
		WriteError(w, types.Wrap(err, "create CRM lead from advertising platform"), h.logger)
		return
	}

	tracking := domain.InboundLeadTracking{
		ID:                 uuid.New(),
		SourceLeadID:       req.SourceLeadID,
		TargetSystemLeadID: leadID,
		EnrichmentStatus:   "queued",
		CreatedAt:          time.Now(),
	}
	if err := h.db.WithContext(r.Context()).Create(&tracking).Error; err != nil {
		h.logger.Warn("failed to record inbound lead tracking", zap.Error(err))
	}

	start := time.Now()
	// The background job outlives this request; it must not inherit
	// r.Context(), which the server cancels the moment this handler returns.
	submitErr := h.workers.Submit(context.Background(), func(ctx context.Context) error {
		result := h.pipeline.Run(ctx, pipeline.Input{LeadID: leadID, CustomerName: req.Name, Phone: req.Phone, Email: req.Email})
		status := "completed"
		if result.Err != nil {
			status = "failed"
		}
		h.db.Model(&domain.InboundLeadTracking{}).Where("id = ?", tracking.ID).Updates(map[string]any{
			"enrichment_status": status,
			"latency_millis":    time.Since(start).Milliseconds(),
			"completed_at":      time.Now(),
		})
		return result.Err
	})
	if submitErr != nil {
		h.logger.Warn("enrichment dispatch queue full for advertising-platform lead", zap.String("lead_id", leadID), zap.Error(submitErr))
	}

	WriteSuccess(w, map[string]string{"status": "received", "lead_id": leadID})
}
