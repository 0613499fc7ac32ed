package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a domain event delivered to the notification sink.
type EventType string

const (
	EventSettlementCreated   EventType = "SETTLEMENT_CREATED"
	EventSettlementCompleted EventType = "SETTLEMENT_COMPLETED"
	EventSettlementCancelled EventType = "SETTLEMENT_CANCELLED"
	EventPaymentCompleted    EventType = "PAYMENT_COMPLETED"
)

// Event is a fire-and-forget notification about a committed state change.
// Delivery is best-effort and out-of-band from the commit; a failed delivery
// never rolls back the ledger.
type Event struct {
	Type       EventType       `json:"type"`
	Reference  string          `json:"reference"`
	UserID     uuid.UUID       `json:"user_id,omitempty"`
	MerchantID uuid.UUID       `json:"merchant_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Fee        decimal.Decimal `json:"fee"`
	OccurredAt time.Time       `json:"occurred_at"`
}
