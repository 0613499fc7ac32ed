package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind represents the kind of money movement.
type EntryKind string

const (
	EntryKindDeposit    EntryKind = "DEPOSIT"
	EntryKindWithdrawal EntryKind = "WITHDRAWAL"
	EntryKindTransfer   EntryKind = "TRANSFER"
	EntryKindPayment    EntryKind = "PAYMENT"
)

// EntryStatus represents the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// LedgerEntry is an immutable record of one balance-affecting event.
// A nil SenderWalletID marks a system credit, a nil ReceiverWalletID a
// system debit. The sum of completed entries reconstructs every wallet
// balance.
type LedgerEntry struct {
	ID               uuid.UUID       `json:"id"`
	SenderWalletID   *uuid.UUID      `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *uuid.UUID      `json:"receiver_wallet_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"` // always positive
	Kind             EntryKind       `json:"kind"`
	Status           EntryStatus     `json:"status"`
	Reference        string          `json:"reference"` // unique idempotency key
	Fee              decimal.Decimal `json:"fee"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the entry is in a final state.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status == EntryStatusCompleted ||
		e.Status == EntryStatusFailed ||
		e.Status == EntryStatusCancelled
}
