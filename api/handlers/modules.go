package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/cache"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/identity"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/deepenrich"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// ModulesHandler proxies the deep-enrichment provider's sub-sections as
// individually addressable modules, cache-fronted by the shared
// provider_response_cache so a burst of module reads for the same
// tax_id costs one upstream call.
type ModulesHandler struct {
	deep   *deepenrich.Client
	caches *cache.Manager
	logger *zap.Logger
}

// NewModulesHandler constructs a ModulesHandler.
func NewModulesHandler(deep *deepenrich.Client, caches *cache.Manager, logger *zap.Logger) *ModulesHandler {
	return &ModulesHandler{deep: deep, caches: caches, logger: logger}
}

// HandleModule serves GET /api/v1/work/modules/{module}?documento=…,
// where module is one of basic, economic, contacts, addresses,
// companies, or all.
func (h *ModulesHandler) HandleModule(w http.ResponseWriter, r *http.Request) {
	module := r.PathValue("module")
	taxID := identity.DigitsOnly(r.URL.Query().Get("documento"))
	if taxID == "" {
		WriteErrorMessage(w, types.KindValidation, "documento is required", h.logger)
		return
	}

	payload, err := h.lookupCached(r.Context(), taxID)
	if err != nil {
		WriteError(w, types.Wrap(err, "deep-enrichment module lookup"), h.logger)
		return
	}

	switch module {
	case "all":
		WriteSuccess(w, payload)
	case "basic":
		WriteSuccess(w, payload.Basic)
	case "economic":
		WriteSuccess(w, payload.Economic)
	case "contacts":
		WriteSuccess(w, payload.Contacts)
	case "addresses":
		WriteSuccess(w, payload.Addresses)
	case "companies":
		WriteSuccess(w, payload.Companies)
	default:
		WriteErrorMessage(w, types.KindNotFound, "unknown module: "+module, h.logger)
	}
}

func (h *ModulesHandler) lookupCached(ctx context.Context, taxID string) (*deepenrich.Payload, error) {
	key := "deep_enrich:" + taxID
	if h.caches != nil {
		if raw, hit := h.caches.ProviderResponse.Get(key); hit {
			var cached deepenrich.Payload
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	payload, err := h.deep.Lookup(ctx, taxID)
	if err != nil {
		return nil, err
	}

	if h.caches != nil {
		if raw, err := json.Marshal(payload); err == nil {
			h.caches.ProviderResponse.Put(key, raw)
		}
	}
	return payload, nil
}
