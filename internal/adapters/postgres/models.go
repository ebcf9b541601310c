package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
)

type campaignModel struct {
	CampaignID       uuid.UUID `gorm:"column:campaign_id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerEmail       string    `gorm:"column:owner_email"`
	PetName          string    `gorm:"column:pet_name"`
	PetImage         string    `gorm:"column:pet_image"`
	MaxDonation      float64   `gorm:"column:max_donation"`
	CollectedAmount  float64   `gorm:"column:collected_amount"`
	Status           string    `gorm:"column:status"`
	Pause            string    `gorm:"column:pause"`
	DonorIDs         string    `gorm:"column:donor_ids;type:jsonb"`
	LastDate         string    `gorm:"column:last_date"`
	ShortDescription string    `gorm:"column:short_description"`
	LongDescription  string    `gorm:"column:long_description"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string { return "campaigns" }

type donorModel struct {
	DonorID    uuid.UUID `gorm:"column:donor_id;type:uuid;default:gen_random_uuid();primaryKey"`
	DonationID uuid.UUID `gorm:"column:donation_id"`
	Email      string    `gorm:"column:email"`
	Name       string    `gorm:"column:name"`
	Amount     float64   `gorm:"column:amount"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (donorModel) TableName() string { return "donors" }

type donorTransactionModel struct {
	EntryID       int64     `gorm:"column:entry_id;primaryKey;autoIncrement"`
	DonorID       uuid.UUID `gorm:"column:donor_id"`
	TransactionID string    `gorm:"column:transaction_id"`
	PaymentMethod string    `gorm:"column:payment_method"`
	Amount        float64   `gorm:"column:amount"`
	OccurredAt    time.Time `gorm:"column:occurred_at"`
}

func (donorTransactionModel) TableName() string { return "donor_transactions" }

type ledgerOutboxModel struct {
	OutboxID         uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType        string     `gorm:"column:event_type"`
	PartitionKey     string     `gorm:"column:partition_key"`
	PartitionKeyPath string     `gorm:"column:partition_key_path"`
	Payload          string     `gorm:"column:payload;type:jsonb"`
	SchemaVersion    string     `gorm:"column:schema_version"`
	TraceID          string     `gorm:"column:trace_id"`
	RetryCount       int        `gorm:"column:retry_count"`
	LastError        *string    `gorm:"column:last_error"`
	LastErrorAt      *time.Time `gorm:"column:last_error_at"`
	FirstSeenAt      time.Time  `gorm:"column:first_seen_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	PublishedAt      *time.Time `gorm:"column:published_at"`
}

func (ledgerOutboxModel) TableName() string { return "ledger_outbox" }

type ledgerIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (ledgerIdempotencyModel) TableName() string { return "ledger_idempotency" }

func toDomainCampaign(m campaignModel) domain.Campaign {
	return domain.Campaign{
		CampaignID:       m.CampaignID.String(),
		OwnerEmail:       m.OwnerEmail,
		PetName:          m.PetName,
		PetImage:         m.PetImage,
		MaxDonation:      m.MaxDonation,
		CollectedAmount:  m.CollectedAmount,
		Status:           m.Status,
		Pause:            m.Pause,
		DonorIDs:         decodeIDs(m.DonorIDs),
		LastDate:         m.LastDate,
		ShortDescription: m.ShortDescription,
		LongDescription:  m.LongDescription,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toDomainDonor(m donorModel, history []donorTransactionModel) domain.Donor {
	out := domain.Donor{
		DonorID:            m.DonorID.String(),
		DonationID:         m.DonationID.String(),
		Email:              m.Email,
		Name:               m.Name,
		Amount:             m.Amount,
		TransactionHistory: make([]domain.Transaction, 0, len(history)),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	for _, h := range history {
		out.TransactionHistory = append(out.TransactionHistory, domain.Transaction{
			TransactionID: h.TransactionID,
			PaymentMethod: h.PaymentMethod,
			Amount:        h.Amount,
			Date:          h.OccurredAt,
		})
	}
	return out
}
