package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// EnrichHandler drives the enrichment pipeline synchronously for a
// caller-supplied identifier set, rather than an inbound webhook.
type EnrichHandler struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewEnrichHandler constructs an EnrichHandler over pl.
func NewEnrichHandler(pl *pipeline.Pipeline, logger *zap.Logger) *EnrichHandler {
	return &EnrichHandler{pipeline: pl, logger: logger}
}

// enrichRequest is the body accepted by POST /api/v1/enrich.
type enrichRequest struct {
	LeadID string `json:"lead_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
}

// enrichResponse reports the pipeline's outcome for the synchronous call.
type enrichResponse struct {
	Dispatched bool   `json:"dispatched"`
	Message    string `json:"message"`
}

// HandleEnrich serves POST /api/v1/enrich.
func (h *EnrichHandler) HandleEnrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.LeadID == "" {
		WriteErrorMessage(w, types.KindValidation, "lead_id is required", h.logger)
		return
	}

	result := h.pipeline.Run(r.Context(), pipeline.Input{
		LeadID:       req.LeadID,
		CustomerName: req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
	})

	if result.Err != nil {
		WriteError(w, types.Wrap(result.Err, "synchronous enrichment"), h.logger)
		return
	}

	WriteSuccess(w, enrichResponse{Dispatched: result.Dispatched, Message: result.Message})
}
