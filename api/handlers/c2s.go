package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// C2SHandler serves the synchronous CRM-driven enrichment route: fetch
// the lead from the CRM, run the pipeline, report the outcome, all
// within the request/response cycle rather than via the webhook path.
type C2SHandler struct {
	crm      *crm.Client
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewC2SHandler constructs a C2SHandler.
func NewC2SHandler(crmClient *crm.Client, pl *pipeline.Pipeline, logger *zap.Logger) *C2SHandler {
	return &C2SHandler{crm: crmClient, pipeline: pl, logger: logger}
}

// HandleEnrichLead serves POST /api/v1/c2s/enrich/{lead_id}.
func (h *C2SHandler) HandleEnrichLead(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("lead_id")
	if leadID == "" {
		WriteErrorMessage(w, types.KindValidation, "lead_id is required", h.logger)
		return
	}

	lead, err := h.crm.FetchLead(r.Context(), leadID)
	if err != nil {
		WriteError(w, types.Wrap(err, "fetch lead"), h.logger)
		return
	}

	result := h.pipeline.Run(r.Context(), pipeline.Input{
		LeadID:       lead.ID,
		CustomerName: lead.Name,
		Phone:        lead.Phone,
		Email:        lead.Email,
	})
	if result.Err != nil {
		WriteError(w, types.Wrap(result.Err, "c2s synchronous enrichment"), h.logger)
		return
	}

	WriteSuccess(w, enrichResponse{Dispatched: result.Dispatched, Message: result.Message})
}
