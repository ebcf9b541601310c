package mongo

import (
	"fmt"
	"time"

	"github.com/viralforge/donor-ledger/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type campaignDocument struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty"`
	OwnerEmail       string               `bson:"campaignOwnerEmail"`
	PetName          string               `bson:"petName"`
	PetImage         string               `bson:"petImage,omitempty"`
	MaxDonation      float64              `bson:"maxDonation"`
	CollectedAmount  float64              `bson:"collectedAmount"`
	Status           string               `bson:"status"`
	Pause            string               `bson:"pause"`
	DonorIDs         []primitive.ObjectID `bson:"donorIds"`
	LastDate         string               `bson:"lastDate,omitempty"`
	ShortDescription string               `bson:"shortDescription,omitempty"`
	LongDescription  string               `bson:"longDescription,omitempty"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

type transactionDocument struct {
	TransactionID string    `bson:"transactionId"`
	PaymentMethod string    `bson:"paymentMethod,omitempty"`
	Amount        float64   `bson:"amount"`
	Date          time.Time `bson:"date"`
}

// donorDocument keeps donationId as a hex string, matching how clients
// have always written it.
type donorDocument struct {
	ID                 primitive.ObjectID    `bson:"_id,omitempty"`
	DonationID         string                `bson:"donationId"`
	Email              string                `bson:"email"`
	Name               string                `bson:"name,omitempty"`
	Amount             float64               `bson:"amount"`
	TransactionHistory []transactionDocument `bson:"transactionHistory"`
	CreatedAt          time.Time             `bson:"createdAt"`
	UpdatedAt          time.Time             `bson:"updatedAt,omitempty"`
}

type donorWithCampaignDocument struct {
	Donor    donorDocument `bson:",inline"`
	Campaign struct {
		PetName  string `bson:"petName"`
		PetImage string `bson:"petImage"`
	} `bson:"campaign"`
}

type outboxDocument struct {
	ID               string     `bson:"_id"`
	EventType        string     `bson:"eventType"`
	PartitionKey     string     `bson:"partitionKey"`
	PartitionKeyPath string     `bson:"partitionKeyPath"`
	Payload          string     `bson:"payload"`
	SchemaVersion    string     `bson:"schemaVersion"`
	TraceID          string     `bson:"traceId,omitempty"`
	RetryCount       int        `bson:"retryCount"`
	LastError        *string    `bson:"lastError,omitempty"`
	LastErrorAt      *time.Time `bson:"lastErrorAt,omitempty"`
	FirstSeenAt      time.Time  `bson:"firstSeenAt"`
	CreatedAt        time.Time  `bson:"createdAt"`
	PublishedAt      *time.Time `bson:"publishedAt"`
}

type idempotencyDocument struct {
	Key          string    `bson:"_id"`
	RequestHash  string    `bson:"requestHash"`
	Status       string    `bson:"status"`
	ResponseCode int       `bson:"responseCode,omitempty"`
	ResponseBody []byte    `bson:"responseBody,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed id %q", domain.ErrInvalidInput, raw)
	}
	return id, nil
}

func parseObjectIDsLenient(raw []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		if id, err := primitive.ObjectIDFromHex(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func toDomainCampaign(doc campaignDocument) domain.Campaign {
	donorIDs := make([]string, 0, len(doc.DonorIDs))
	for _, id := range doc.DonorIDs {
		donorIDs = append(donorIDs, id.Hex())
	}
	return domain.Campaign{
		CampaignID:       doc.ID.Hex(),
		OwnerEmail:       doc.OwnerEmail,
		PetName:          doc.PetName,
		PetImage:         doc.PetImage,
		MaxDonation:      doc.MaxDonation,
		CollectedAmount:  doc.CollectedAmount,
		Status:           doc.Status,
		Pause:            doc.Pause,
		DonorIDs:         donorIDs,
		LastDate:         doc.LastDate,
		ShortDescription: doc.ShortDescription,
		LongDescription:  doc.LongDescription,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func toDomainDonor(doc donorDocument) domain.Donor {
	history := make([]domain.Transaction, 0, len(doc.TransactionHistory))
	for _, tx := range doc.TransactionHistory {
		history = append(history, domain.Transaction{
			TransactionID: tx.TransactionID,
			PaymentMethod: tx.PaymentMethod,
			Amount:        tx.Amount,
			Date:          tx.Date,
		})
	}
	return domain.Donor{
		DonorID:            doc.ID.Hex(),
		DonationID:         doc.DonationID,
		Email:              doc.Email,
		Name:               doc.Name,
		Amount:             doc.Amount,
		TransactionHistory: history,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
}
