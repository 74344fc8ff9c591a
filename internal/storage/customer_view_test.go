package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGetCustomerByID_Found(t *testing.T) {
	engine, mock, closeFn := setupTestEngine(t)
	defer closeFn()

	partyID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "core"\."parties"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(partyID, now, now))

	mock.ExpectQuery(`SELECT \* FROM "core"\."contacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "party_id", "contact_type", "value"}))

	mock.ExpectQuery(`SELECT a\.\*, pa\.address_type, pa\.is_primary`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address_type", "is_primary"}))

	view, err := engine.GetCustomerByID(context.Background(), partyID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, partyID, view.Party.ID)
	assert.Empty(t, view.Contacts)
	assert.Empty(t, view.Addresses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCustomerByID_NotFound(t *testing.T) {
	engine, mock, closeFn := setupTestEngine(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT \* FROM "core"\."parties"`).
		WillReturnError(gorm.ErrRecordNotFound)

	view, err := engine.GetCustomerByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, view)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCustomerByTaxID_Found(t *testing.T) {
	engine, mock, closeFn := setupTestEngine(t)
	defer closeFn()

	partyID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "core"\."parties" WHERE tax_id = \$1 AND enriched = \$2`).
		WithArgs("12345678900", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tax_id", "created_at", "updated_at"}).
			AddRow(partyID, "12345678900", now, now))

	mock.ExpectQuery(`SELECT \* FROM "core"\."contacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "party_id"}))

	mock.ExpectQuery(`SELECT a\.\*, pa\.address_type, pa\.is_primary`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address_type", "is_primary"}))

	view, err := engine.GetCustomerByTaxID(context.Background(), "12345678900")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, partyID, view.Party.ID)
}
