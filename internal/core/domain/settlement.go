package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementType distinguishes cash-in from cash-out.
type SettlementType string

const (
	SettlementTypeDeposit    SettlementType = "DEPOSIT"
	SettlementTypeWithdrawal SettlementType = "WITHDRAWAL"
)

// SettlementStatus represents the escrow state machine:
// PENDING -> COMPLETED | CANCELLED | REJECTED (terminal).
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusCompleted SettlementStatus = "COMPLETED"
	SettlementStatusCancelled SettlementStatus = "CANCELLED"
	SettlementStatusRejected  SettlementStatus = "REJECTED"
)

// MerchantSettlement is one escrow cash transaction between a student and a
// merchant. Status moves to COMPLETED only when both confirmation flags are
// true; the ledger effect is applied exactly once at that moment.
type MerchantSettlement struct {
	ID                uuid.UUID        `json:"id"`
	UserID            uuid.UUID        `json:"user_id"`
	MerchantID        uuid.UUID        `json:"merchant_id"`
	Type              SettlementType   `json:"type"`
	Amount            decimal.Decimal  `json:"amount"`
	Fee               decimal.Decimal  `json:"fee"`
	Reference         string           `json:"reference"` // unique, MERCH-xxxxx style
	Status            SettlementStatus `json:"status"`
	StudentConfirmed  bool             `json:"student_confirmed"`
	MerchantConfirmed bool             `json:"merchant_confirmed"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// IsTerminal returns true if the settlement is in a final state.
func (s *MerchantSettlement) IsTerminal() bool {
	return s.Status != SettlementStatusPending
}

// BothConfirmed reports whether both parties have confirmed the cash exchange.
func (s *MerchantSettlement) BothConfirmed() bool {
	return s.StudentConfirmed && s.MerchantConfirmed
}

// ConfirmedBy reports whether the given actor has already confirmed.
func (s *MerchantSettlement) ConfirmedBy(actor SettlementActor) bool {
	if actor == SettlementActorMerchant {
		return s.MerchantConfirmed
	}
	return s.StudentConfirmed
}

// SettlementActor identifies which party performs a confirmation or cancel.
type SettlementActor string

const (
	SettlementActorStudent  SettlementActor = "STUDENT"
	SettlementActorMerchant SettlementActor = "MERCHANT"
)
