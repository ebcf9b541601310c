package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

func (s *Service) CreatePaymentIntent(ctx context.Context, actor Actor, input CreatePaymentIntentInput) (PaymentIntentResult, error) {
	if err := requireActor(actor); err != nil {
		return PaymentIntentResult{}, err
	}
	input.DonationID = strings.TrimSpace(input.DonationID)
	if err := domain.ValidateStruct(input); err != nil {
		return PaymentIntentResult{}, err
	}
	if input.AmountInCents > s.cfg.MaxPaymentAmountCent {
		return PaymentIntentResult{}, fmt.Errorf("%w: amountInCents exceeds %d", domain.ErrInvalidInput, s.cfg.MaxPaymentAmountCent)
	}
	if s.payments == nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: payment processor not configured", domain.ErrDependencyUnavailable)
	}
	metadata := map[string]string{"request_id": actor.RequestID}
	if input.DonationID != "" {
		metadata["donation_id"] = input.DonationID
	}
	intent, err := s.payments.CreatePaymentIntent(ctx, ports.PaymentIntentParams{
		AmountInCents: input.AmountInCents,
		Currency:      s.cfg.PaymentCurrency,
		ReceiptEmail:  actor.Email,
		Metadata:      metadata,
	})
	if err != nil {
		return PaymentIntentResult{}, err
	}
	return PaymentIntentResult{ClientSecret: intent.ClientSecret, IntentID: intent.IntentID}, nil
}
