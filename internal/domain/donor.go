package domain

import "time"

type Transaction struct {
	TransactionID string
	PaymentMethod string
	Amount        float64
	Date          time.Time
}

// Donor aggregates every contribution one email made to one campaign.
// Amount always equals the sum of TransactionHistory amounts.
type Donor struct {
	DonorID            string
	DonationID         string
	Email              string
	Name               string
	Amount             float64
	TransactionHistory []Transaction
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DonorWithCampaign is a donor row joined to the campaign it references.
type DonorWithCampaign struct {
	Donor
	PetName  string
	PetImage string
}

func (d Donor) HistoryTotal() float64 {
	var total float64
	for _, tx := range d.TransactionHistory {
		total += tx.Amount
	}
	return total
}
