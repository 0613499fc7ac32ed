package postgres

import (
	"context"
	"testing"

	"campus-wallet/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingRepo_GetDecimal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettingRepo(mock)

	mock.ExpectQuery("SELECT value FROM platform_settings").
		WithArgs(ports.SettingExchangeRate).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(decimal.RequireFromString("10")))

	value, err := repo.GetDecimal(context.Background(), ports.SettingExchangeRate)
	require.NoError(t, err)
	assert.Equal(t, "10", value.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_GetDecimal_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettingRepo(mock)

	mock.ExpectQuery("SELECT value FROM platform_settings").
		WithArgs("no_such_key").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	_, err = repo.GetDecimal(context.Background(), "no_such_key")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_DecimalAlias(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettingRepo(mock)

	mock.ExpectQuery("SELECT value FROM platform_settings").
		WithArgs(ports.SettingTransferFeePercentage).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(decimal.RequireFromString("0.5")))

	value, err := repo.Decimal(context.Background(), ports.SettingTransferFeePercentage)
	require.NoError(t, err)
	assert.Equal(t, "0.5", value.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
