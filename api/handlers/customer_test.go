package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/breaker"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/storage"
)

func newTestCustomerHandler(t *testing.T) (*CustomerHandler, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	engine := storage.New(gormDB, breaker.New(breaker.Config{}), zap.NewNop())
	return NewCustomerHandler(engine, zap.NewNop()), mock, func() { mockDB.Close() }
}

func TestCustomerHandler_HandleGetByID_InvalidUUID(t *testing.T) {
	h, _, closeFn := newTestCustomerHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()

	h.HandleGetByID(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerHandler_HandleGetByID_Found(t *testing.T) {
	h, mock, closeFn := newTestCustomerHandler(t)
	defer closeFn()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "core"\."parties"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))
	mock.ExpectQuery(`SELECT \* FROM "core"\."contacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT a\.\*, pa\.address_type, pa\.is_primary`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	h.HandleGetByID(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCustomerHandler_HandleContributorLookup_MissingCriteria(t *testing.T) {
	h, _, closeFn := newTestCustomerHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contributor/customer", nil)
	rec := httptest.NewRecorder()

	h.HandleContributorLookup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerHandler_HandleContributorLookup_NameOnlyNotIndexed(t *testing.T) {
	h, _, closeFn := newTestCustomerHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contributor/customer?name=Joao", nil)
	rec := httptest.NewRecorder()

	h.HandleContributorLookup(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomerHandler_HandleContributorLookup_InvalidEmail(t *testing.T) {
	h, _, closeFn := newTestCustomerHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contributor/customer?email=not-an-email", nil)
	rec := httptest.NewRecorder()

	h.HandleContributorLookup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerHandler_HandleContributorLookup_InvalidPhone(t *testing.T) {
	h, _, closeFn := newTestCustomerHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contributor/customer?phone=123", nil)
	rec := httptest.NewRecorder()

	h.HandleContributorLookup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
