package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// Refund removes a donor and reverses its full amount out of the campaign.
// Only the contributor can refund, compared by exact email.
func (s *Service) Refund(ctx context.Context, actor Actor, donorID string) (RefundResult, error) {
	if err := requireActor(actor); err != nil {
		return RefundResult{}, err
	}
	donorID = strings.TrimSpace(donorID)
	if donorID == "" {
		return RefundResult{}, fmt.Errorf("%w: donor id is required", domain.ErrInvalidInput)
	}
	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return RefundResult{}, err
	}
	if donor.Email != actor.Email {
		return RefundResult{}, domain.ErrForbidden
	}

	now := s.nowFn()
	result := RefundResult{
		Success:        true,
		DonorID:        donor.DonorID,
		DonationID:     donor.DonationID,
		RefundedAmount: donor.Amount,
	}
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.donors.Delete(txCtx, donor.DonorID); err != nil {
			return err
		}
		event := refundEventData{
			DonationID: donor.DonationID,
			DonorID:    donor.DonorID,
			Email:      donor.Email,
			Amount:     donor.Amount,
		}
		campaign, err := s.campaigns.ReverseContribution(txCtx, ports.ReverseContributionParams{
			CampaignID:      donor.DonationID,
			DonorID:         donor.DonorID,
			Amount:          donor.Amount,
			RecomputeStatus: !s.cfg.KeepStatusOnRefund,
			At:              now,
		})
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidInput):
			// orphan donor; nothing to reverse
		case err != nil:
			return err
		default:
			result.CampaignUpdated = true
			result.CampaignStatus = campaign.Status
			event.Collected = campaign.CollectedAmount
			event.Status = campaign.Status
		}
		return s.enqueueEvent(txCtx, domain.EventDonorRefunded, donor.DonationID, actor.RequestID, event)
	})
	if err != nil {
		return RefundResult{}, err
	}

	s.bumpRecommendGeneration(ctx)
	if s.metrics != nil {
		s.metrics.DonorRefunded(donor.Amount)
	}
	return result, nil
}
