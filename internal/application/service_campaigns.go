package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

func (s *Service) CreateCampaign(ctx context.Context, actor Actor, input CreateCampaignInput) (CampaignResponse, error) {
	if err := requireActor(actor); err != nil {
		return CampaignResponse{}, err
	}
	input.PetName = strings.TrimSpace(input.PetName)
	input.PetImage = strings.TrimSpace(input.PetImage)
	if err := domain.ValidateStruct(input); err != nil {
		return CampaignResponse{}, err
	}
	now := s.nowFn()
	created, err := s.campaigns.Create(ctx, domain.Campaign{
		OwnerEmail:       actor.Email,
		PetName:          input.PetName,
		PetImage:         input.PetImage,
		MaxDonation:      input.MaxDonation,
		CollectedAmount:  0,
		Status:           domain.CampaignStatusNotDonate,
		Pause:            domain.PauseStateResumed,
		DonorIDs:         []string{},
		LastDate:         input.LastDate,
		ShortDescription: input.ShortDescription,
		LongDescription:  input.LongDescription,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return CampaignResponse{}, err
	}
	s.bumpRecommendGeneration(ctx)
	return toCampaignResponse(created), nil
}

func (s *Service) GetCampaign(ctx context.Context, actor Actor, campaignID string) (CampaignResponse, error) {
	if err := requireActor(actor); err != nil {
		return CampaignResponse{}, err
	}
	campaign, err := s.campaigns.GetByID(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return CampaignResponse{}, err
	}
	return toCampaignResponse(campaign), nil
}

func (s *Service) ListOwnerCampaigns(ctx context.Context, actor Actor, email string) ([]CampaignResponse, error) {
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
	items, err := s.campaigns.ListByOwner(ctx, email)
	if err != nil {
		return nil, err
	}
	return toCampaignResponses(items), nil
}

// UpdateCampaign edits the listing fields. The store re-derives status so a
// changed goal is reflected immediately.
func (s *Service) UpdateCampaign(ctx context.Context, actor Actor, campaignID string, input UpdateCampaignInput) (CampaignResponse, error) {
	if err := requireActor(actor); err != nil {
		return CampaignResponse{}, err
	}
	if err := domain.ValidateStruct(input); err != nil {
		return CampaignResponse{}, err
	}
	campaign, err := s.campaigns.GetByID(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return CampaignResponse{}, err
	}
	if !campaign.OwnedBy(actor.Email) {
		return CampaignResponse{}, domain.ErrForbidden
	}
	updated, err := s.campaigns.Update(ctx, ports.UpdateCampaignParams{
		CampaignID:       campaign.CampaignID,
		PetName:          input.PetName,
		PetImage:         input.PetImage,
		MaxDonation:      input.MaxDonation,
		LastDate:         input.LastDate,
		ShortDescription: input.ShortDescription,
		LongDescription:  input.LongDescription,
		UpdatedAt:        s.nowFn(),
	})
	if err != nil {
		return CampaignResponse{}, err
	}
	s.bumpRecommendGeneration(ctx)
	return toCampaignResponse(updated), nil
}

func (s *Service) TogglePause(ctx context.Context, actor Actor, campaignID string) (PauseResult, error) {
	if err := requireActor(actor); err != nil {
		return PauseResult{}, err
	}
	campaign, err := s.campaigns.GetByID(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return PauseResult{}, err
	}
	if !campaign.OwnedBy(actor.Email) {
		return PauseResult{}, domain.ErrForbidden
	}
	next := domain.TogglePause(campaign.Pause)
	updated, err := s.campaigns.SetPause(ctx, campaign.CampaignID, next, s.nowFn())
	if err != nil {
		return PauseResult{}, err
	}
	verb := "resumed"
	if updated.Pause == domain.PauseStatePaused {
		verb = "paused"
	}
	return PauseResult{
		CampaignID: updated.CampaignID,
		Pause:      updated.Pause,
		Message:    "Donation " + verb + " successfully",
	}, nil
}
