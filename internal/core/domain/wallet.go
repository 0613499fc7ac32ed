package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the campus currency unit.
const DefaultCurrency = "CUT"

// OwnerType identifies which kind of account holds a wallet.
type OwnerType string

const (
	OwnerTypeStudent  OwnerType = "STUDENT"
	OwnerTypeMerchant OwnerType = "MERCHANT"
)

// Wallet holds an account's CUTcoin balance. The balance is a materialized
// cache of completed ledger entry history and is mutated only through the
// ledger service, never written directly by callers.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	OwnerType OwnerType       `json:"owner_type"`
	Balance   decimal.Decimal `json:"balance"` // NUMERIC(20,2), never negative
	Currency  string          `json:"currency"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
