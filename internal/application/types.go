package application

import (
	"time"

	"github.com/viralforge/donor-ledger/internal/domain"
)

type Config struct {
	ServiceName          string
	IdempotencyTTL       time.Duration
	RecommendCacheTTL    time.Duration
	KeepStatusOnRefund   bool
	PaymentCurrency      string
	ReconcileBatchSize   int
	MaxPaymentAmountCent int64
}

// Actor is the verified caller. Every ledger operation receives it
// explicitly; nothing reads the principal from ambient request state.
type Actor struct {
	Email          string
	Subject        string
	RequestID      string
	IdempotencyKey string
}

type RecordContributionInput struct {
	DonationID    string  `json:"donationId" validate:"required,max=64"`
	Email         string  `json:"email" validate:"required,email"`
	Name          string  `json:"name,omitempty" validate:"max=120"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	TransactionID string  `json:"transactionId" validate:"required,max=255"`
	PaymentMethod string  `json:"paymentMethod" validate:"max=64"`
}

type ContributionResult struct {
	DonorID         string `json:"updatedOrInsertedId"`
	CampaignUpdated bool   `json:"donationUpdated"`
	NewStatus       string `json:"updatedStatus"`
	NewDonor        bool   `json:"newDonor"`
}

type RefundResult struct {
	Success         bool    `json:"success"`
	DonorID         string  `json:"donorId"`
	DonationID      string  `json:"donationId"`
	RefundedAmount  float64 `json:"refundedAmount"`
	CampaignUpdated bool    `json:"donationUpdated"`
	CampaignStatus  string  `json:"status,omitempty"`
}

type CreateCampaignInput struct {
	PetName          string  `json:"petName" validate:"required,max=120"`
	PetImage         string  `json:"petImage" validate:"omitempty,url"`
	MaxDonation      float64 `json:"maxDonation" validate:"gt=0"`
	LastDate         string  `json:"lastDate" validate:"max=64"`
	ShortDescription string  `json:"shortDescription" validate:"max=500"`
	LongDescription  string  `json:"longDescription" validate:"max=10000"`
}

type UpdateCampaignInput struct {
	PetName          *string  `json:"petName,omitempty" validate:"omitempty,max=120"`
	PetImage         *string  `json:"petImage,omitempty" validate:"omitempty,url"`
	MaxDonation      *float64 `json:"maxDonation,omitempty" validate:"omitempty,gt=0"`
	LastDate         *string  `json:"lastDate,omitempty" validate:"omitempty,max=64"`
	ShortDescription *string  `json:"shortDescription,omitempty" validate:"omitempty,max=500"`
	LongDescription  *string  `json:"longDescription,omitempty" validate:"omitempty,max=10000"`
}

type PauseResult struct {
	CampaignID string `json:"id"`
	Pause      string `json:"pause"`
	Message    string `json:"message"`
}

type CreatePaymentIntentInput struct {
	AmountInCents int64  `json:"amountInCents" validate:"gt=0"`
	DonationID    string `json:"donationId,omitempty" validate:"max=64"`
}

type PaymentIntentResult struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"paymentIntentId"`
}

type ReconcileResult struct {
	CampaignID        string  `json:"id"`
	PreviousCollected float64 `json:"previousCollected"`
	CollectedAmount   float64 `json:"collectedAmount"`
	PreviousStatus    string  `json:"previousStatus"`
	Status            string  `json:"status"`
	DonorCount        int     `json:"donorCount"`
	Drifted           bool    `json:"drifted"`
	Skipped           bool    `json:"skipped,omitempty"`
}

type CampaignResponse struct {
	CampaignID       string    `json:"_id"`
	OwnerEmail       string    `json:"campaignOwnerEmail"`
	PetName          string    `json:"petName"`
	PetImage         string    `json:"petImage"`
	MaxDonation      float64   `json:"maxDonation"`
	CollectedAmount  float64   `json:"collectedAmount"`
	Status           string    `json:"status"`
	Pause            string    `json:"pause"`
	DonorIDs         []string  `json:"donorIds"`
	LastDate         string    `json:"lastDate,omitempty"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	LongDescription  string    `json:"longDescription,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type TransactionResponse struct {
	TransactionID string    `json:"transactionId"`
	PaymentMethod string    `json:"paymentMethod"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
}

type DonorResponse struct {
	DonorID            string                `json:"_id"`
	DonationID         string                `json:"donationId"`
	Email              string                `json:"email"`
	Name               string                `json:"name,omitempty"`
	Amount             float64               `json:"amount"`
	TransactionHistory []TransactionResponse `json:"transactionHistory"`
	CreatedAt          time.Time             `json:"createdAt"`
	PetName            string                `json:"petName,omitempty"`
	PetImage           string                `json:"petImage,omitempty"`
}

func toCampaignResponse(c domain.Campaign) CampaignResponse {
	donorIDs := c.DonorIDs
	if donorIDs == nil {
		donorIDs = []string{}
	}
	return CampaignResponse{
		CampaignID:       c.CampaignID,
		OwnerEmail:       c.OwnerEmail,
		PetName:          c.PetName,
		PetImage:         c.PetImage,
		MaxDonation:      c.MaxDonation,
		CollectedAmount:  c.CollectedAmount,
		Status:           c.Status,
		Pause:            c.Pause,
		DonorIDs:         donorIDs,
		LastDate:         c.LastDate,
		ShortDescription: c.ShortDescription,
		LongDescription:  c.LongDescription,
		CreatedAt:        c.CreatedAt,
	}
}

func toCampaignResponses(items []domain.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toCampaignResponse(item))
	}
	return out
}

func toDonorResponse(d domain.Donor) DonorResponse {
	history := make([]TransactionResponse, 0, len(d.TransactionHistory))
	for _, tx := range d.TransactionHistory {
		history = append(history, TransactionResponse{
			TransactionID: tx.TransactionID,
			PaymentMethod: tx.PaymentMethod,
			Amount:        tx.Amount,
			Date:          tx.Date,
		})
	}
	return DonorResponse{
		DonorID:            d.DonorID,
		DonationID:         d.DonationID,
		Email:              d.Email,
		Name:               d.Name,
		Amount:             d.Amount,
		TransactionHistory: history,
		CreatedAt:          d.CreatedAt,
	}
}
