package chapa

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const statusSuccess = "success"

// minorUnitExponent is the decimal exponent between Telegram amounts (minor
// units) and the major-unit amounts Chapa expects. USD and ETB both use 2.
const minorUnitExponent = -2

// InitializeRequest is the body of POST <initialize-endpoint>.
type InitializeRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	PhoneNumber string          `json:"phone_number"`
	TxRef       string          `json:"tx_ref"`
	CallbackURL string          `json:"callback_url"`
	ReturnURL   string          `json:"return_url"`
}

// InitializeResult is a successful initialize response.
type InitializeResult struct {
	StatusCode  int
	CheckoutURL string
}

type initializeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// Outcome is the classification of a verification.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnknown   Outcome = "unknown"
)

// Verification is the parsed body of GET <verify-endpoint>/<tx_ref>.
type Verification struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    *VerificationData `json:"data"`
	Raw     json.RawMessage   `json:"-"`
}

// VerificationData is the nested transaction block of a verification.
type VerificationData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	TxRef     string `json:"tx_ref"`
}

// Outcome reports confirmed only when both the envelope and the transaction
// report success. A nil verification is unknown.
func (v *Verification) Outcome() Outcome {
	if v == nil {
		return OutcomeUnknown
	}
	if v.Status == statusSuccess && v.Data != nil && v.Data.Status == statusSuccess {
		return OutcomeConfirmed
	}
	return OutcomeFailed
}

// AmountFromMinorUnits converts a Telegram total (cents) to the decimal amount
// sent to Chapa.
func AmountFromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, minorUnitExponent)
}
