package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// Recommend returns up to count open campaigns, preferring ones the caller
// does not own. Slots left empty are filled from all open campaigns.
func (s *Service) Recommend(ctx context.Context, actor Actor, excludeID string, count int) ([]CampaignResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	count, err := domain.NormalizeRecommendCount(count)
	if err != nil {
		return nil, err
	}
	excludeID = strings.TrimSpace(excludeID)

	cacheKey := ""
	if s.cache != nil {
		cacheKey = s.recommendCacheKey(ctx, actor.Email, excludeID, count)
		if raw, cacheErr := s.cache.Get(ctx, cacheKey); cacheErr == nil && raw != "" {
			var cached []CampaignResponse
			if json.Unmarshal([]byte(raw), &cached) == nil {
				if s.metrics != nil {
					s.metrics.RecommendationServed(true)
				}
				return cached, nil
			}
		}
	}

	preferred, err := s.campaigns.ListRecommendable(ctx, ports.RecommendFilter{
		ExcludeID:    excludeID,
		ExcludeOwner: actor.Email,
		Limit:        count,
	})
	if err != nil {
		return nil, err
	}
	items := preferred
	if len(preferred) < count {
		filler, err := s.campaigns.ListRecommendable(ctx, ports.RecommendFilter{
			ExcludeID: excludeID,
			Limit:     count,
		})
		if err != nil {
			return nil, err
		}
		items = mergeRecommendations(preferred, filler, count)
	}

	out := toCampaignResponses(items)
	if cacheKey != "" {
		if raw, marshalErr := json.Marshal(out); marshalErr == nil {
			_ = s.cache.Set(ctx, cacheKey, string(raw), s.cfg.RecommendCacheTTL)
		}
	}
	if s.metrics != nil {
		s.metrics.RecommendationServed(false)
	}
	return out, nil
}

func mergeRecommendations(preferred, filler []domain.Campaign, limit int) []domain.Campaign {
	out := make([]domain.Campaign, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, group := range [][]domain.Campaign{preferred, filler} {
		for _, item := range group {
			if len(out) == limit {
				return out
			}
			if _, ok := seen[item.CampaignID]; ok {
				continue
			}
			seen[item.CampaignID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// ListOwnerDonors returns the caller's own contributions with the pet each
// one went to. Donors whose campaign is gone are left out.
func (s *Service) ListOwnerDonors(ctx context.Context, actor Actor, email string) ([]DonorResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if email != actor.Email {
		return nil, domain.ErrForbidden
	}
	rows, err := s.donors.ListByEmailWithCampaign(ctx, email)
	if err != nil {
		return nil, err
	}
	out := make([]DonorResponse, 0, len(rows))
	for _, row := range rows {
		item := toDonorResponse(row.Donor)
		item.PetName = row.PetName
		item.PetImage = row.PetImage
		out = append(out, item)
	}
	return out, nil
}

// ListDonorsByIDs lets a campaign owner inspect donors. Ownership is compared
// ignoring case, and one foreign campaign rejects the whole batch.
func (s *Service) ListDonorsByIDs(ctx context.Context, actor Actor, donorIDs []string) ([]DonorResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if len(donorIDs) == 0 {
		return nil, fmt.Errorf("%w: no donor ids provided", domain.ErrInvalidInput)
	}
	ids := make([]string, 0, len(donorIDs))
	for _, raw := range donorIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: donor ids must not be empty", domain.ErrInvalidInput)
		}
		ids = append(ids, id)
	}

	donors, err := s.donors.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	campaignIDs := make([]string, 0, len(donors))
	seen := map[string]struct{}{}
	for _, d := range donors {
		if _, ok := seen[d.DonationID]; ok {
			continue
		}
		seen[d.DonationID] = struct{}{}
		campaignIDs = append(campaignIDs, d.DonationID)
	}
	campaigns, err := s.campaigns.ListByIDs(ctx, campaignIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range campaigns {
		if !c.OwnedByFold(actor.Email) {
			return nil, domain.ErrForbidden
		}
	}

	byID := make(map[string]domain.Donor, len(donors))
	for _, d := range donors {
		byID[d.DonorID] = d
	}
	out := make([]DonorResponse, 0, len(donors))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		out = append(out, toDonorResponse(d))
	}
	return out, nil
}
