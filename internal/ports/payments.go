package ports

import "context"

type PaymentIntentParams struct {
	AmountInCents int64
	Currency      string
	ReceiptEmail  string
	Metadata      map[string]string
}

type PaymentIntent struct {
	IntentID      string
	ClientSecret  string
	AmountInCents int64
	Currency      string
	Status        string
}

// PaymentProcessor creates client-confirmable payment handles. Settlement is
// confirmed by the client against the processor; the ledger never sees it.
type PaymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (PaymentIntent, error)
}
