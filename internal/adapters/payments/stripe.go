package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// StripeProcessor creates card payment intents. Calls go through a circuit
// breaker so a Stripe outage fails fast instead of holding request goroutines.
type StripeProcessor struct {
	intents intentCreator
	breaker *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	logger  *slog.Logger
}

func NewStripeProcessor(secretKey string, cfg BreakerConfig, logger *slog.Logger) (*StripeProcessor, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newStripeProcessor(sc.PaymentIntents, cfg, logger), nil
}

func newStripeProcessor(intents intentCreator, cfg BreakerConfig, logger *slog.Logger) *StripeProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	p := &StripeProcessor{intents: intents, logger: logger}
	p.breaker = gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe-payment-intents",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"module", "payments.stripe",
				"layer", "adapter",
				"operation", "state_change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return p
}

func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, params ports.PaymentIntentParams) (ports.PaymentIntent, error) {
	req := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(params.AmountInCents),
		Currency:           stripe.String(params.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	req.Context = ctx
	if params.ReceiptEmail != "" {
		req.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	for k, v := range params.Metadata {
		req.AddMetadata(k, v)
	}

	intent, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.intents.New(req)
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "create payment intent failed",
			"module", "payments.stripe",
			"layer", "adapter",
			"operation", "create_payment_intent",
			"outcome", "failure",
			"error", err,
		)
		if isClientError(err) {
			return ports.PaymentIntent{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return ports.PaymentIntent{}, fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
	}
	return ports.PaymentIntent{
		IntentID:      intent.ID,
		ClientSecret:  intent.ClientSecret,
		AmountInCents: intent.Amount,
		Currency:      string(intent.Currency),
		Status:        string(intent.Status),
	}, nil
}

// isClientError reports request errors Stripe rejected on their merits.
// They say nothing about Stripe's health and must not trip the breaker.
func isClientError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Type == stripe.ErrorTypeInvalidRequest || stripeErr.Type == stripe.ErrorTypeCard
}
