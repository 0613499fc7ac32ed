package ports

import (
	"context"
	"time"

	"campus-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// EntryRepository defines persistence operations for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error)
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.LedgerEntry, error)
	// ListByWallet returns entries where the wallet is sender or receiver,
	// newest first, with the total count for pagination.
	ListByWallet(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	// SumCompletedByWallet sums completed entry amounts of the given kind that
	// debited or credited the wallet since the given instant. Used by the
	// limit policy for calendar-day and calendar-month caps.
	SumCompletedByWallet(ctx context.Context, walletID uuid.UUID, kind domain.EntryKind, since time.Time) (decimal.Decimal, error)
}

// EntryListParams holds pagination for listing a wallet's entries.
type EntryListParams struct {
	WalletID uuid.UUID
	Page     int
	PageSize int
}

// SettlementRepository defines persistence operations for merchant settlements.
type SettlementRepository interface {
	Create(ctx context.Context, s *domain.MerchantSettlement) error
	GetByReference(ctx context.Context, reference string) (*domain.MerchantSettlement, error)
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.MerchantSettlement, error)
	Update(ctx context.Context, tx pgx.Tx, s *domain.MerchantSettlement) error
}

// PaymentRepository defines persistence operations for gateway payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.GatewayPayment) error
	GetByReference(ctx context.Context, reference string) (*domain.GatewayPayment, error)
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.GatewayPayment, error)
	Update(ctx context.Context, tx pgx.Tx, p *domain.GatewayPayment) error
	// SetGatewayDetails stores the gateway's identifiers after a successful
	// charge creation, outside any ledger transaction.
	SetGatewayDetails(ctx context.Context, reference string, externalRef, redirectURL, pollURL string) error
}

// SettingRepository reads platform policy values (exchange rate, fee
// thresholds, limits) from durable storage.
type SettingRepository interface {
	GetDecimal(ctx context.Context, key string) (decimal.Decimal, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
