package postgres

import (
	"context"
	"errors"
	"fmt"

	"campus-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const settlementColumns = `id, user_id, merchant_id, type, amount, fee, reference, status,
		student_confirmed, merchant_confirmed, completed_at, cancelled_at, created_at, updated_at`

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create inserts a new settlement row. Rows are only created in PENDING
// state with both confirmation flags false.
func (r *SettlementRepo) Create(ctx context.Context, s *domain.MerchantSettlement) error {
	query := `INSERT INTO merchant_settlements (id, user_id, merchant_id, type, amount, fee, reference, status,
		student_confirmed, merchant_confirmed, completed_at, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.MerchantID, s.Type, s.Amount, s.Fee, s.Reference, s.Status,
		s.StudentConfirmed, s.MerchantConfirmed, s.CompletedAt, s.CancelledAt,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// GetByReference fetches a settlement by reference (non-locking read).
func (r *SettlementRepo) GetByReference(ctx context.Context, reference string) (*domain.MerchantSettlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchant_settlements WHERE reference = $1`, settlementColumns)

	return scanSettlement(r.pool.QueryRow(ctx, query, reference))
}

// GetByReferenceForUpdate fetches a settlement by reference with pessimistic
// locking, serializing concurrent confirmations on the same reference.
// This MUST be called within a transaction.
func (r *SettlementRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.MerchantSettlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchant_settlements WHERE reference = $1 FOR UPDATE`, settlementColumns)

	return scanSettlement(tx.QueryRow(ctx, query, reference))
}

// Update persists confirmation flags and status transitions within a
// database transaction.
func (r *SettlementRepo) Update(ctx context.Context, tx pgx.Tx, s *domain.MerchantSettlement) error {
	query := `UPDATE merchant_settlements
		SET status = $1, student_confirmed = $2, merchant_confirmed = $3,
		completed_at = $4, cancelled_at = $5, updated_at = NOW()
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		s.Status, s.StudentConfirmed, s.MerchantConfirmed,
		s.CompletedAt, s.CancelledAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement not found: %s", s.ID)
	}
	return nil
}

// scanSettlement is a helper to scan a single row into a MerchantSettlement.
func scanSettlement(row pgx.Row) (*domain.MerchantSettlement, error) {
	s := &domain.MerchantSettlement{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.MerchantID, &s.Type, &s.Amount, &s.Fee, &s.Reference, &s.Status,
		&s.StudentConfirmed, &s.MerchantConfirmed, &s.CompletedAt, &s.CancelledAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan settlement: %w", err)
	}
	return s, nil
}
