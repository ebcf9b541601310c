package http

import (
	"net/http"

	"github.com/viralforge/donor-ledger/internal/application"
)

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "create_payment_intent")
		return
	}
	var req application.CreatePaymentIntentInput
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_payment_intent", err)
		return
	}
	res, err := h.service.CreatePaymentIntent(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_payment_intent", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
