package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/identity"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/storage"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// CustomerHandler serves the canonical customer view: lookup by opaque
// party id, or by one of the contributor-supplied identifiers (tax id,
// email, phone, name).
type CustomerHandler struct {
	store  *storage.Engine
	logger *zap.Logger
}

// NewCustomerHandler constructs a CustomerHandler over store.
func NewCustomerHandler(store *storage.Engine, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{store: store, logger: logger}
}

// HandleGetByID serves GET /api/v1/customers/{id}.
func (h *CustomerHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorMessage(w, types.KindValidation, "id must be a UUID", h.logger)
		return
	}

	view, err := h.store.GetCustomerByID(r.Context(), id)
	h.respond(w, view, err)
}

// HandleContributorLookup serves GET /api/v1/contributor/customer,
// resolving by the first of cpf, email, phone, or name present on the
// query string.
func (h *CustomerHandler) HandleContributorLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("cpf") != "":
		taxID := identity.DigitsOnly(q.Get("cpf"))
		view, err := h.store.GetCustomerByTaxID(r.Context(), taxID)
		h.respond(w, view, err)

	case q.Get("email") != "":
		email, ok := identity.ValidateEmail(q.Get("email"))
		if !ok {
			WriteErrorMessage(w, types.KindValidation, "email is not well-formed", h.logger)
			return
		}
		result, err := h.store.LookupByContact(r.Context(), "", email)
		h.respondContactResult(w, r, result, err)

	case q.Get("phone") != "":
		digits, ok := identity.ValidatePhone(q.Get("phone"))
		if !ok {
			WriteErrorMessage(w, types.KindValidation, "phone is not a valid Brazilian number", h.logger)
			return
		}
		result, err := h.store.LookupByContact(r.Context(), digits, "")
		h.respondContactResult(w, r, result, err)

	case q.Get("name") != "":
		WriteErrorMessage(w, types.KindNotFound, "name-only lookup is not indexed; supply cpf, email, or phone", h.logger)

	default:
		WriteErrorMessage(w, types.KindValidation, "one of cpf, email, phone, or name is required", h.logger)
	}
}

func (h *CustomerHandler) respondContactResult(w http.ResponseWriter, r *http.Request, result *storage.ContactLookupResult, err error) {
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if result == nil {
		WriteErrorMessage(w, types.KindNotFound, "customer not found", h.logger)
		return
	}
	view, err := h.store.GetCustomerByID(r.Context(), result.PartyID)
	h.respond(w, view, err)
}

func (h *CustomerHandler) respond(w http.ResponseWriter, view *storage.CustomerView, err error) {
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if view == nil {
		WriteErrorMessage(w, types.KindNotFound, "customer not found", h.logger)
		return
	}
	WriteSuccess(w, view)
}

func (h *CustomerHandler) writeErr(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*types.Error); ok {
		WriteError(w, apiErr, h.logger)
		return
	}
	WriteError(w, types.Wrap(err, "customer lookup"), h.logger)
}
