package application

import (
	"context"
	"time"

	"github.com/viralforge/donor-ledger/internal/ports"
)

type Service struct {
	cfg         Config
	campaigns   ports.CampaignRepository
	donors      ports.DonorRepository
	outbox      ports.OutboxRepository
	tx          ports.Transactor
	idempotency ports.IdempotencyRepository
	cache       ports.Cache
	payments    ports.PaymentProcessor
	metrics     ports.LedgerMetrics
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Campaigns   ports.CampaignRepository
	Donors      ports.DonorRepository
	Outbox      ports.OutboxRepository
	Transactor  ports.Transactor
	Idempotency ports.IdempotencyRepository
	Cache       ports.Cache
	Payments    ports.PaymentProcessor
	Metrics     ports.LedgerMetrics
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Donor-Ledger-Service"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.RecommendCacheTTL <= 0 {
		cfg.RecommendCacheTTL = time.Minute
	}
	if cfg.PaymentCurrency == "" {
		cfg.PaymentCurrency = "usd"
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 200
	}
	if cfg.MaxPaymentAmountCent <= 0 {
		cfg.MaxPaymentAmountCent = 99999999
	}
	tx := deps.Transactor
	if tx == nil {
		tx = noTransaction{}
	}

	return &Service{
		cfg:         cfg,
		campaigns:   deps.Campaigns,
		donors:      deps.Donors,
		outbox:      deps.Outbox,
		tx:          tx,
		idempotency: deps.Idempotency,
		cache:       deps.Cache,
		payments:    deps.Payments,
		metrics:     deps.Metrics,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// noTransaction runs fn directly. Each repository call is then atomic on
// its own document only, and the reconcile job repairs any drift.
type noTransaction struct{}

func (noTransaction) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
