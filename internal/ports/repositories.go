package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
)

type UpdateCampaignParams struct {
	CampaignID       string
	PetName          *string
	PetImage         *string
	MaxDonation      *float64
	LastDate         *string
	ShortDescription *string
	LongDescription  *string
	UpdatedAt        time.Time
}

// RecommendFilter selects campaigns still accepting money, newest first.
// An empty ExcludeOwner disables the owner filter.
type RecommendFilter struct {
	ExcludeID    string
	ExcludeOwner string
	Limit        int
}

type ApplyContributionParams struct {
	CampaignID string
	DonorID    string
	Amount     float64
	At         time.Time
}

type ReverseContributionParams struct {
	CampaignID      string
	DonorID         string
	Amount          float64
	RecomputeStatus bool
	At              time.Time
}

// CampaignTotals replaces a campaign aggregate. The write only lands while
// the stored collectedAmount and updatedAt still equal the Expected values;
// otherwise OverwriteTotals returns domain.ErrConflict.
type CampaignTotals struct {
	CampaignID        string
	CollectedAmount   float64
	DonorIDs          []string
	Status            string
	At                time.Time
	ExpectedCollected float64
	ExpectedUpdatedAt time.Time
}

type CampaignRepository interface {
	Create(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error)
	GetByID(ctx context.Context, campaignID string) (domain.Campaign, error)
	// GetForUpdate reads the campaign and, where the store supports it, holds
	// a write lock on it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, campaignID string) (domain.Campaign, error)
	ListByIDs(ctx context.Context, campaignIDs []string) ([]domain.Campaign, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Campaign, error)
	ListRecommendable(ctx context.Context, filter RecommendFilter) ([]domain.Campaign, error)
	ListIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, params UpdateCampaignParams) (domain.Campaign, error)
	SetPause(ctx context.Context, campaignID, pause string, at time.Time) (domain.Campaign, error)
	// ApplyContribution adds the donor to the set, increments the total and
	// writes the contribution status in one store operation. It returns the
	// campaign as stored after the update.
	ApplyContribution(ctx context.Context, params ApplyContributionParams) (domain.Campaign, error)
	ReverseContribution(ctx context.Context, params ReverseContributionParams) (domain.Campaign, error)
	OverwriteTotals(ctx context.Context, totals CampaignTotals) error
}

type RecordContributionParams struct {
	DonationID  string
	Email       string
	Name        string
	Transaction domain.Transaction
}

type DonorRepository interface {
	// UpsertContribution creates the (donation, email) donor or increments its
	// amount and appends one history entry, atomically. created is true when
	// the row did not exist before.
	UpsertContribution(ctx context.Context, params RecordContributionParams) (donor domain.Donor, created bool, err error)
	GetByID(ctx context.Context, donorID string) (domain.Donor, error)
	ListByIDs(ctx context.Context, donorIDs []string) ([]domain.Donor, error)
	ListByEmailWithCampaign(ctx context.Context, email string) ([]domain.DonorWithCampaign, error)
	ListByDonationID(ctx context.Context, donationID string) ([]domain.Donor, error)
	Delete(ctx context.Context, donorID string) error
}

// Transactor runs fn inside one store transaction when the store supports it.
// Repositories called with the ctx passed to fn join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type OutboxEvent struct {
	EventID          uuid.UUID
	EventType        string
	PartitionKey     string
	PartitionKeyPath string
	Payload          []byte
	OccurredAt       time.Time
	SchemaVersion    string
	TraceID          string
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}

type IdempotencyRecord struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	Status       string    `json:"status"`
	ResponseCode int       `json:"response_code,omitempty"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Reserve fails with domain.ErrConflict when the key is already held.
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
	Release(ctx context.Context, key string) error
}
