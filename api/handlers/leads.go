package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pool"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// LeadsHandler serves the lightweight lead-intake route and its
// synchronous single-lead processing counterpart.
type LeadsHandler struct {
	db       *gorm.DB
	crm      *crm.Client
	pipeline *pipeline.Pipeline
	workers  *pool.GoroutinePool
	logger   *zap.Logger
}

// NewLeadsHandler constructs a LeadsHandler.
func NewLeadsHandler(db *gorm.DB, crmClient *crm.Client, pl *pipeline.Pipeline, workers *pool.GoroutinePool, logger *zap.Logger) *LeadsHandler {
	return &LeadsHandler{db: db, crm: crmClient, pipeline: pl, workers: workers, logger: logger}
}

// createLeadRequest is the body accepted by POST /api/v1/leads.
type createLeadRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	SellerID string `json:"seller_id"`
}

// HandleCreate serves POST /api/v1/leads: creates the lead on the CRM,
// records intake tracking, and hands enrichment to the background
// worker pool without blocking the response.
func (h *LeadsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Name == "" || (req.Phone == "" && req.Email == "") {
		WriteErrorMessage(w, types.KindValidation, "name and at least one of phone or email are required", h.logger)
		return
	}

	leadID, err := h.crm.CreateLead(r.Context(), crm.CreateLeadAttributes{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		SellerID: req.SellerID,
	})
	if err != nil {
		WriteError(w, types.Wrap(err, "create CRM lead"), h.logger)
		return
	}

	tracking := domain.InboundLeadTracking{
		ID:               uuid.New(),
		SourceLeadID:     leadID,
		EnrichmentStatus: "queued",
		CreatedAt:        time.Now(),
	}
	if err := h.db.WithContext(r.Context()).Create(&tracking).Error; err != nil {
		h.logger.Warn("failed to record inbound lead tracking", zap.Error(err))
	}

	// The background job outlives this request; it must not inherit
	// r.Context(), which the server cancels the moment this handler returns.
	submitErr := h.workers.Submit(context.Background(), func(ctx context.Context) error {
		start := time.Now()
		result := h.pipeline.Run(ctx, pipeline.Input{LeadID: leadID, CustomerName: req.Name, Phone: req.Phone, Email: req.Email})
		h.completeTracking(tracking.ID, start, result.Err)
		return result.Err
	})
	if submitErr != nil {
		h.logger.Warn("enrichment dispatch queue full, lead recorded without background processing", zap.String("lead_id", leadID), zap.Error(submitErr))
	}

	WriteJSON(w, http.StatusAccepted, Response{
		Success:   true,
		Data:      map[string]string{"lead_id": leadID, "status": "queued"},
		Timestamp: time.Now(),
	})
}

func (h *LeadsHandler) completeTracking(id uuid.UUID, start time.Time, runErr error) {
	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	now := time.Now()
	h.db.Model(&domain.InboundLeadTracking{}).Where("id = ?", id).Updates(map[string]any{
		"enrichment_status": status,
		"latency_millis":    time.Since(start).Milliseconds(),
		"completed_at":      now,
	})
}

// HandleProcess serves GET /api/v1/leads/process?id=…, the synchronous
// equivalent of the webhook path for a single already-existing lead.
func (h *LeadsHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	leadID := r.URL.Query().Get("id")
	if leadID == "" {
		WriteErrorMessage(w, types.KindValidation, "id is required", h.logger)
		return
	}

	lead, err := h.crm.FetchLead(r.Context(), leadID)
	if err != nil {
		WriteError(w, types.Wrap(err, "fetch lead for synchronous processing"), h.logger)
		return
	}

	result := h.pipeline.Run(r.Context(), pipeline.Input{
		LeadID:       lead.ID,
		CustomerName: lead.Name,
		Phone:        lead.Phone,
		Email:        lead.Email,
	})
	if result.Err != nil {
		WriteError(w, types.Wrap(result.Err, "synchronous lead processing"), h.logger)
		return
	}

	WriteSuccess(w, enrichResponse{Dispatched: result.Dispatched, Message: result.Message})
}
