package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a gateway top-up.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// GatewayPayment is a merchant-initiated wallet top-up through the external
// payment gateway. It transitions to COMPLETED together with exactly one
// ledger credit; reconciling a terminal payment again is a no-op.
type GatewayPayment struct {
	ID                uuid.UUID       `json:"id"`
	MerchantID        uuid.UUID       `json:"merchant_id"`
	WalletID          uuid.UUID       `json:"wallet_id"`
	Reference         string          `json:"reference"` // internal idempotency key, TOPUP-xxxxx style
	ExternalReference *string         `json:"external_reference,omitempty"`
	FiatAmount        decimal.Decimal `json:"fiat_amount"`
	CutcoinAmount     decimal.Decimal `json:"cutcoin_amount"` // fiat * exchange rate at initiation
	Status            PaymentStatus   `json:"status"`
	RedirectURL       *string         `json:"redirect_url,omitempty"`
	PollURL           *string         `json:"poll_url,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the payment is in a final state.
func (p *GatewayPayment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted ||
		p.Status == PaymentStatusFailed ||
		p.Status == PaymentStatusCancelled
}
