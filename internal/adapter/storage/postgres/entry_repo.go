package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const entryColumns = `id, sender_wallet_id, receiver_wallet_id, amount, kind, status, reference, fee, created_at, updated_at`

// EntryRepo implements ports.EntryRepository.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create inserts a new ledger entry within a database transaction. The
// unique index on reference backs the idempotency guarantee.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, sender_wallet_id, receiver_wallet_id, amount, kind, status, reference, fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.SenderWalletID, e.ReceiverWalletID, e.Amount,
		e.Kind, e.Status, e.Reference, e.Fee,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByReference fetches an entry by its idempotency reference.
func (r *EntryRepo) GetByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE reference = $1`, entryColumns)

	return scanEntry(r.pool.QueryRow(ctx, query, reference))
}

// GetByReferenceForUpdate fetches an entry by reference with pessimistic
// locking. This MUST be called within a transaction.
func (r *EntryRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE reference = $1 FOR UPDATE`, entryColumns)

	return scanEntry(tx.QueryRow(ctx, query, reference))
}

// ListByWallet fetches entries touching a wallet, newest first, with total count.
func (r *EntryRepo) ListByWallet(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE sender_wallet_id = $1 OR receiver_wallet_id = $1`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, params.WalletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries
		WHERE sender_wallet_id = $1 OR receiver_wallet_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, entryColumns)

	rows, err := r.pool.Query(ctx, dataQuery, params.WalletID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.SenderWalletID, &e.ReceiverWalletID, &e.Amount,
			&e.Kind, &e.Status, &e.Reference, &e.Fee,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, total, nil
}

// SumCompletedByWallet sums completed entry amounts of one kind that moved
// money out of or into the wallet since the given instant.
func (r *EntryRepo) SumCompletedByWallet(ctx context.Context, walletID uuid.UUID, kind domain.EntryKind, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE (sender_wallet_id = $1 OR receiver_wallet_id = $1)
		AND kind = $2 AND status = 'COMPLETED' AND created_at >= $3`

	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, walletID, kind, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// scanEntry is a helper to scan a single row into a LedgerEntry.
func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.SenderWalletID, &e.ReceiverWalletID, &e.Amount,
		&e.Kind, &e.Status, &e.Reference, &e.Fee,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}
