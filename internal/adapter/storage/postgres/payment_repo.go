package postgres

import (
	"context"
	"errors"
	"fmt"

	"campus-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, merchant_id, wallet_id, reference, external_reference,
		fiat_amount, cutcoin_amount, status, redirect_url, poll_url, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new gateway payment row before the gateway is contacted,
// so a crash between persistence and the gateway call leaves a reconcilable
// PENDING row rather than an untracked charge.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.GatewayPayment) error {
	query := `INSERT INTO gateway_payments (id, merchant_id, wallet_id, reference, external_reference,
		fiat_amount, cutcoin_amount, status, redirect_url, poll_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.MerchantID, p.WalletID, p.Reference, p.ExternalReference,
		p.FiatAmount, p.CutcoinAmount, p.Status, p.RedirectURL, p.PollURL,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gateway payment: %w", err)
	}
	return nil
}

// GetByReference fetches a payment by its internal reference (non-locking read).
func (r *PaymentRepo) GetByReference(ctx context.Context, reference string) (*domain.GatewayPayment, error) {
	query := fmt.Sprintf(`SELECT %s FROM gateway_payments WHERE reference = $1`, paymentColumns)

	return scanPayment(r.pool.QueryRow(ctx, query, reference))
}

// GetByReferenceForUpdate fetches a payment by reference with pessimistic
// locking. This is the per-reference lock that serializes concurrent
// reconciliations. It MUST be called within a transaction.
func (r *PaymentRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.GatewayPayment, error) {
	query := fmt.Sprintf(`SELECT %s FROM gateway_payments WHERE reference = $1 FOR UPDATE`, paymentColumns)

	return scanPayment(tx.QueryRow(ctx, query, reference))
}

// Update persists a status transition within a database transaction.
func (r *PaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.GatewayPayment) error {
	query := `UPDATE gateway_payments
		SET status = $1, external_reference = $2, redirect_url = $3, poll_url = $4, updated_at = NOW()
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query, p.Status, p.ExternalReference, p.RedirectURL, p.PollURL, p.ID)
	if err != nil {
		return fmt.Errorf("update gateway payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway payment not found: %s", p.ID)
	}
	return nil
}

// SetGatewayDetails stores the gateway's identifiers after charge creation.
func (r *PaymentRepo) SetGatewayDetails(ctx context.Context, reference string, externalRef, redirectURL, pollURL string) error {
	query := `UPDATE gateway_payments
		SET external_reference = $1, redirect_url = $2, poll_url = $3, updated_at = NOW()
		WHERE reference = $4`

	tag, err := r.pool.Exec(ctx, query, externalRef, redirectURL, pollURL, reference)
	if err != nil {
		return fmt.Errorf("set gateway details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway payment not found: %s", reference)
	}
	return nil
}

// scanPayment is a helper to scan a single row into a GatewayPayment.
func scanPayment(row pgx.Row) (*domain.GatewayPayment, error) {
	p := &domain.GatewayPayment{}
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.WalletID, &p.Reference, &p.ExternalReference,
		&p.FiatAmount, &p.CutcoinAmount, &p.Status, &p.RedirectURL, &p.PollURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan gateway payment: %w", err)
	}
	return p, nil
}
