package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SettingRepo implements ports.SettingRepository and ports.SettingProvider.
// Every read goes to the database so policy changes (fee percentages,
// limits, exchange rate) take effect on the next request.
type SettingRepo struct {
	pool Pool
}

// NewSettingRepo creates a new SettingRepo.
func NewSettingRepo(pool Pool) *SettingRepo {
	return &SettingRepo{pool: pool}
}

// GetDecimal reads one numeric setting by key.
func (r *SettingRepo) GetDecimal(ctx context.Context, key string) (decimal.Decimal, error) {
	query := `SELECT value FROM platform_settings WHERE key = $1`

	var value decimal.Decimal
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("setting not found: %s", key)
		}
		return decimal.Zero, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Decimal satisfies ports.SettingProvider.
func (r *SettingRepo) Decimal(ctx context.Context, key string) (decimal.Decimal, error) {
	return r.GetDecimal(ctx, key)
}
