package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/donor-ledger/internal/application"
	"github.com/viralforge/donor-ledger/internal/domain"
)

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "recommend_campaigns")
		return
	}
	query := r.URL.Query()
	count := parseIntDefault(query.Get("count"), domain.DefaultRecommendCount)
	items, err := h.service.Recommend(r.Context(), actor, query.Get("excludeId"), count)
	if err != nil {
		writeMappedError(r.Context(), w, "recommend_campaigns", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "create_campaign")
		return
	}
	var req application.CreateCampaignInput
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_campaign", err)
		return
	}
	res, err := h.service.CreateCampaign(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_campaign", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) listOwnerCampaigns(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_owner_campaigns")
		return
	}
	items, err := h.service.ListOwnerCampaigns(r.Context(), actor, r.URL.Query().Get("email"))
	if err != nil {
		writeMappedError(r.Context(), w, "list_owner_campaigns", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "get_campaign")
		return
	}
	res, err := h.service.GetCampaign(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_campaign", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) updateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "update_campaign")
		return
	}
	var req application.UpdateCampaignInput
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_campaign", err)
		return
	}
	res, err := h.service.UpdateCampaign(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		writeMappedError(r.Context(), w, "update_campaign", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) togglePause(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "toggle_pause")
		return
	}
	res, err := h.service.TogglePause(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(r.Context(), w, "toggle_pause", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
