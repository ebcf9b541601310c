package mongo

import (
	"github.com/viralforge/donor-ledger/internal/ports"
	"go.mongodb.org/mongo-driver/mongo"
)

type Repositories struct {
	Campaigns   ports.CampaignRepository
	Donors      ports.DonorRepository
	Outbox      ports.OutboxRepository
	Idempotency ports.IdempotencyRepository
	Transactor  ports.Transactor
}

func NewRepositories(client *mongo.Client, db *mongo.Database, transactions bool) Repositories {
	return Repositories{
		Campaigns:   &campaignRepository{coll: db.Collection(campaignsCollection)},
		Donors:      &donorRepository{coll: db.Collection(donorsCollection)},
		Outbox:      &outboxRepository{coll: db.Collection(outboxCollection)},
		Idempotency: &idempotencyRepository{coll: db.Collection(idempotencyCollection)},
		Transactor:  NewTransactor(client, transactions),
	}
}
