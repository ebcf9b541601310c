package postgres

import (
	"github.com/viralforge/donor-ledger/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Campaigns   ports.CampaignRepository
	Donors      ports.DonorRepository
	Outbox      ports.OutboxRepository
	Idempotency ports.IdempotencyRepository
	Transactor  ports.Transactor
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Campaigns:   &campaignRepository{db: db},
		Donors:      &donorRepository{db: db},
		Outbox:      &outboxRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		Transactor:  &Transactor{db: db},
	}
}
