package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// Store keeps campaigns, donors and the outbox in one place so a transaction
// can snapshot and restore all three together.
type Store struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	campaigns   map[string]domain.Campaign
	donors      map[string]domain.Donor
	donorByPair map[string]string
	outbox      map[uuid.UUID]ports.OutboxRecord
	outboxOrder []uuid.UUID
}

type Repositories struct {
	Campaigns   *CampaignRepository
	Donors      *DonorRepository
	Outbox      *OutboxRepository
	Idempotency *IdempotencyRepository
	Cache       *Cache
	Transactor  *Transactor
}

func NewRepositories() *Repositories {
	store := &Store{
		campaigns:   map[string]domain.Campaign{},
		donors:      map[string]domain.Donor{},
		donorByPair: map[string]string{},
		outbox:      map[uuid.UUID]ports.OutboxRecord{},
	}
	return &Repositories{
		Campaigns:   &CampaignRepository{store: store},
		Donors:      &DonorRepository{store: store},
		Outbox:      &OutboxRepository{store: store},
		Idempotency: &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
		Cache:       NewCache(),
		Transactor:  &Transactor{store: store},
	}
}

type txKey struct{}

func inTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// writeLock holds txMu for a write made outside a transaction, so a
// concurrent rollback cannot restore over it. Inside a transaction the
// caller already holds it.
func (s *Store) writeLock(ctx context.Context) func() {
	if inTransaction(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// Transactor serializes transactions and rolls the whole store back when fn
// fails. Nested calls join the outer transaction.
type Transactor struct {
	store *Store
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTransaction(ctx) {
		return fn(ctx)
	}
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	campaigns   map[string]domain.Campaign
	donors      map[string]domain.Donor
	donorByPair map[string]string
	outbox      map[uuid.UUID]ports.OutboxRecord
	outboxOrder []uuid.UUID
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		campaigns:   make(map[string]domain.Campaign, len(s.campaigns)),
		donors:      make(map[string]domain.Donor, len(s.donors)),
		donorByPair: make(map[string]string, len(s.donorByPair)),
		outbox:      make(map[uuid.UUID]ports.OutboxRecord, len(s.outbox)),
		outboxOrder: append([]uuid.UUID(nil), s.outboxOrder...),
	}
	for k, v := range s.campaigns {
		snap.campaigns[k] = cloneCampaign(v)
	}
	for k, v := range s.donors {
		snap.donors[k] = cloneDonor(v)
	}
	for k, v := range s.donorByPair {
		snap.donorByPair[k] = v
	}
	for k, v := range s.outbox {
		snap.outbox[k] = v
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = snap.campaigns
	s.donors = snap.donors
	s.donorByPair = snap.donorByPair
	s.outbox = snap.outbox
	s.outboxOrder = snap.outboxOrder
}

func cloneCampaign(c domain.Campaign) domain.Campaign {
	c.DonorIDs = append([]string{}, c.DonorIDs...)
	return c
}

func cloneDonor(d domain.Donor) domain.Donor {
	d.TransactionHistory = append([]domain.Transaction{}, d.TransactionHistory...)
	return d
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed id %q", domain.ErrInvalidInput, id)
	}
	return nil
}
