package domain

import "time"

// TransactionStatus tracks where a local checkout stands in the journal.
type TransactionStatus string

const (
	StatusAwaitingConfirmation TransactionStatus = "awaiting_confirmation"
	StatusConfirmed            TransactionStatus = "confirmed"
	StatusFailed               TransactionStatus = "failed"
)

// Statuses lists every journal status in reporting order.
var Statuses = []TransactionStatus{
	StatusAwaitingConfirmation,
	StatusConfirmed,
	StatusFailed,
}

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Transaction is a journal entry for a checkout initialized with the payment
// provider. Amount is kept in minor units as received from Telegram.
type Transaction struct {
	TxRef             string            `bson:"tx_ref" json:"tx_ref"`
	ChatID            int64             `bson:"chat_id" json:"chat_id"`
	UserID            int64             `bson:"user_id" json:"user_id"`
	Amount            int64             `bson:"amount" json:"amount"`
	Currency          string            `bson:"currency" json:"currency"`
	CheckoutURL       string            `bson:"checkout_url" json:"checkout_url"`
	Status            TransactionStatus `bson:"status" json:"status"`
	ProviderReference string            `bson:"provider_reference,omitempty" json:"provider_reference,omitempty"`
	CreatedAt         time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `bson:"updated_at" json:"updated_at"`
}
