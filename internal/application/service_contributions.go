package application

import (
	"context"
	"strings"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// RecordContribution folds one payment into the (campaign, email) donor row and
// the campaign aggregate. When the store supports transactions both writes and
// the outbox events commit together.
func (s *Service) RecordContribution(ctx context.Context, actor Actor, input RecordContributionInput) (ContributionResult, error) {
	if err := requireActor(actor); err != nil {
		return ContributionResult{}, err
	}
	input.DonationID = strings.TrimSpace(input.DonationID)
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	input.TransactionID = strings.TrimSpace(input.TransactionID)
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)
	if err := domain.ValidateStruct(input); err != nil {
		return ContributionResult{}, err
	}

	idemKey := ""
	if key := strings.TrimSpace(actor.IdempotencyKey); key != "" {
		idemKey = contributionIdempotencyKey(input.DonationID, input.Email, key)
	}
	requestHash := hashRequest(input)
	var cached ContributionResult
	if ok, err := s.replayIdempotent(ctx, idemKey, requestHash, &cached); err != nil {
		return ContributionResult{}, err
	} else if ok {
		return cached, nil
	}

	if _, err := s.campaigns.GetByID(ctx, input.DonationID); err != nil {
		return ContributionResult{}, err
	}
	if err := s.reserveIdempotency(ctx, idemKey, requestHash); err != nil {
		return ContributionResult{}, err
	}

	now := s.nowFn()
	var result ContributionResult
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		donor, created, err := s.donors.UpsertContribution(txCtx, ports.RecordContributionParams{
			DonationID: input.DonationID,
			Email:      input.Email,
			Name:       input.Name,
			Transaction: domain.Transaction{
				TransactionID: input.TransactionID,
				PaymentMethod: input.PaymentMethod,
				Amount:        input.Amount,
				Date:          now,
			},
		})
		if err != nil {
			return err
		}
		campaign, err := s.campaigns.ApplyContribution(txCtx, ports.ApplyContributionParams{
			CampaignID: input.DonationID,
			DonorID:    donor.DonorID,
			Amount:     input.Amount,
			At:         now,
		})
		if err != nil {
			return err
		}
		result = ContributionResult{
			DonorID:         donor.DonorID,
			CampaignUpdated: true,
			NewStatus:       campaign.Status,
			NewDonor:        created,
		}

		if err := s.enqueueEvent(txCtx, domain.EventContributionRecorded, campaign.CampaignID, actor.RequestID, contributionEventData{
			DonationID:    campaign.CampaignID,
			DonorID:       donor.DonorID,
			Email:         donor.Email,
			Amount:        input.Amount,
			TransactionID: input.TransactionID,
			PaymentMethod: input.PaymentMethod,
			DonorTotal:    donor.Amount,
			Collected:     campaign.CollectedAmount,
			Status:        campaign.Status,
			NewDonor:      created,
		}); err != nil {
			return err
		}
		if domain.GoalCrossed(campaign.CollectedAmount, input.Amount, campaign.MaxDonation) {
			return s.enqueueEvent(txCtx, domain.EventCampaignGoalReached, campaign.CampaignID, actor.RequestID, goalReachedEventData{
				DonationID:  campaign.CampaignID,
				OwnerEmail:  campaign.OwnerEmail,
				MaxDonation: campaign.MaxDonation,
				Collected:   campaign.CollectedAmount,
			})
		}
		return nil
	})
	if err != nil {
		s.releaseIdempotency(ctx, idemKey)
		return ContributionResult{}, err
	}

	s.completeIdempotency(ctx, idemKey, 200, result)
	s.bumpRecommendGeneration(ctx)
	if s.metrics != nil {
		s.metrics.ContributionRecorded(result.NewStatus, input.Amount, result.NewDonor)
	}
	return result, nil
}
