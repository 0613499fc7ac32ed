package postgres

import (
	"context"
	"testing"
	"time"

	"campus-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettlement(reference string) *domain.MerchantSettlement {
	return &domain.MerchantSettlement{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		MerchantID: uuid.New(),
		Type:       domain.SettlementTypeDeposit,
		Amount:     decimal.RequireFromString("1000.00"),
		Fee:        decimal.RequireFromString("5.00"),
		Reference:  reference,
		Status:     domain.SettlementStatusPending,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func settlementCols() []string {
	return []string{"id", "user_id", "merchant_id", "type", "amount", "fee", "reference", "status",
		"student_confirmed", "merchant_confirmed", "completed_at", "cancelled_at", "created_at", "updated_at"}
}

func settlementRow(s *domain.MerchantSettlement) *pgxmock.Rows {
	return pgxmock.NewRows(settlementCols()).AddRow(
		s.ID, s.UserID, s.MerchantID, s.Type, s.Amount, s.Fee, s.Reference, s.Status,
		s.StudentConfirmed, s.MerchantConfirmed, s.CompletedAt, s.CancelledAt,
		s.CreatedAt, s.UpdatedAt,
	)
}

func TestSettlementRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement("MERCH-abc-1")

	mock.ExpectExec("INSERT INTO merchant_settlements").
		WithArgs(s.ID, s.UserID, s.MerchantID, s.Type, s.Amount, s.Fee, s.Reference, s.Status,
			s.StudentConfirmed, s.MerchantConfirmed, s.CompletedAt, s.CancelledAt,
			s.CreatedAt, s.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement("MERCH-abc-1")

	mock.ExpectQuery("SELECT .+ FROM merchant_settlements WHERE reference").
		WithArgs(s.Reference).
		WillReturnRows(settlementRow(s))

	result, err := repo.GetByReference(context.Background(), s.Reference)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, s.ID, result.ID)
	assert.Equal(t, domain.SettlementStatusPending, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_GetByReference_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM merchant_settlements WHERE reference").
		WithArgs("MERCH-missing").
		WillReturnRows(pgxmock.NewRows(settlementCols()))

	result, err := repo.GetByReference(context.Background(), "MERCH-missing")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_GetByReferenceForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement("MERCH-abc-2")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM merchant_settlements WHERE reference .+ FOR UPDATE").
		WithArgs(s.Reference).
		WillReturnRows(settlementRow(s))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByReferenceForUpdate(context.Background(), tx, s.Reference)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, s.Reference, result.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement("MERCH-abc-3")
	s.StudentConfirmed = true
	s.MerchantConfirmed = true
	s.Status = domain.SettlementStatusCompleted
	now := time.Now().UTC()
	s.CompletedAt = &now

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE merchant_settlements").
		WithArgs(s.Status, s.StudentConfirmed, s.MerchantConfirmed,
			s.CompletedAt, s.CancelledAt, s.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
