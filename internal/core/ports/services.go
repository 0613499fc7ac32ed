package ports

import (
	"context"
	"time"

	"campus-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Setting keys consumed from the configuration store. Values may change
// between calls, so providers must read fresh per call.
const (
	SettingExchangeRate                = "exchange_rate"
	SettingDailyTransactionLimit       = "daily_transaction_limit"
	SettingMonthlyWithdrawalLimit      = "monthly_withdrawal_limit"
	SettingTransferFeeThreshold        = "transfer_fee_threshold"
	SettingTransferFeePercentage       = "transfer_fee_percentage"
	SettingWithdrawalFeeThreshold      = "withdrawal_fee_threshold"
	SettingWithdrawalFeePercentage     = "withdrawal_fee_percentage"
	SettingMerchantDailyDepositLimit   = "merchant_daily_deposit_limit"
	SettingMerchantMonthlyDepositLimit = "merchant_monthly_deposit_limit"
)

// SettingProvider exposes current numeric policy values keyed by name.
// Implementations must not cache across calls.
type SettingProvider interface {
	Decimal(ctx context.Context, key string) (decimal.Decimal, error)
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached entry JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EntryParams holds the inputs for one tx-scoped ledger mutation.
type EntryParams struct {
	WalletID  uuid.UUID
	Amount    decimal.Decimal
	Reference string
	Kind      domain.EntryKind
	Fee       decimal.Decimal
}

// LedgerService owns wallet balance mutations. All operations are idempotent
// per reference: a repeated call returns the stored entry without reapplying.
// The InTx variants run inside a caller-owned transaction so settlement and
// reconciliation can compose balance changes with their own state transitions
// as one atomic unit.
type LedgerService interface {
	Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error)
	Transfer(ctx context.Context, fromWalletID, toWalletID uuid.UUID, amount decimal.Decimal, reference string, fee decimal.Decimal) (*domain.LedgerEntry, error)
	CreditInTx(ctx context.Context, tx pgx.Tx, params EntryParams) (*domain.LedgerEntry, error)
	DebitInTx(ctx context.Context, tx pgx.Tx, params EntryParams) (*domain.LedgerEntry, error)
	GetBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, string, error)
	ListEntries(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// LimitService computes the applicable fee and validates a proposed
// transaction against per-user daily and monthly caps. A disallowed
// transaction is reported through the error return (LIM_001 / LIM_002).
type LimitService interface {
	Evaluate(ctx context.Context, userID uuid.UUID, kind domain.EntryKind, amount decimal.Decimal) (decimal.Decimal, error)
}

// InitiateSettlementRequest holds validated input for starting an escrow
// settlement.
type InitiateSettlementRequest struct {
	UserID     uuid.UUID
	MerchantID uuid.UUID
	Type       domain.SettlementType
	Amount     decimal.Decimal
}

// SettlementService drives the merchant cash deposit/withdrawal state
// machine. The double confirmation is the commit point: the ledger is never
// touched before both flags are set, and exactly once when they are.
type SettlementService interface {
	Initiate(ctx context.Context, req InitiateSettlementRequest) (*domain.MerchantSettlement, error)
	ConfirmByStudent(ctx context.Context, reference string) (*domain.MerchantSettlement, error)
	ConfirmByMerchant(ctx context.Context, reference string) (*domain.MerchantSettlement, error)
	Cancel(ctx context.Context, reference string, actor domain.SettlementActor) (*domain.MerchantSettlement, error)
	Get(ctx context.Context, reference string) (*domain.MerchantSettlement, error)
}

// ReconcilerService initiates gateway top-ups and reconciles asynchronous
// payment confirmations into ledger credits, exactly once per reference.
type ReconcilerService interface {
	InitiateTopUp(ctx context.Context, merchantID uuid.UUID, fiatAmount decimal.Decimal) (*domain.GatewayPayment, error)
	Reconcile(ctx context.Context, reference string) (*domain.GatewayPayment, error)
}

// ChargeStatus is the gateway-reported state of an external charge.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "PENDING"
	ChargeStatusPaid      ChargeStatus = "PAID"
	ChargeStatusFailed    ChargeStatus = "FAILED"
	ChargeStatusCancelled ChargeStatus = "CANCELLED"
)

// ChargeRequest is sent to the external gateway when creating a charge.
// Reference is the internal idempotency key; the gateway deduplicates
// retried initiations on it.
type ChargeRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// ChargeResponse carries the gateway's identifiers for a created charge.
type ChargeResponse struct {
	ExternalReference string
	RedirectURL       string
	PollURL           string
}

// PaymentGateway is the outbound interface to the external payment provider.
// Calls must respect the configured timeout; a timeout is a transient
// failure, never a payment failure.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	GetStatus(ctx context.Context, reference string) (ChargeStatus, error)
}

// NotificationSink consumes domain events. Delivery is best-effort and
// out-of-band from the commit; failures never roll back the ledger.
type NotificationSink interface {
	Publish(ctx context.Context, event domain.Event) error
}
