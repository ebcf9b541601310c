package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/donor-ledger/internal/application"
)

func (h *Handler) recordContribution(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "record_contribution")
		return
	}
	var req application.RecordContributionInput
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, "record_contribution", err)
		return
	}
	res, err := h.service.RecordContribution(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "record_contribution", err)
		return
	}
	status := http.StatusOK
	if res.NewDonor {
		status = http.StatusCreated
	}
	writeSuccess(w, status, res)
}

func (h *Handler) listOwnerDonors(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_owner_donors")
		return
	}
	items, err := h.service.ListOwnerDonors(r.Context(), actor, r.URL.Query().Get("email"))
	if err != nil {
		writeMappedError(r.Context(), w, "list_owner_donors", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) listDonorsByIDs(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_donors_by_ids")
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, "list_donors_by_ids", err)
		return
	}
	items, err := h.service.ListDonorsByIDs(r.Context(), actor, req.IDs)
	if err != nil {
		writeMappedError(r.Context(), w, "list_donors_by_ids", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) refundDonor(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "refund_donor")
		return
	}
	res, err := h.service.Refund(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(r.Context(), w, "refund_donor", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
