package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pool"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
)

func newTestLeadsHandler(t *testing.T, crmServerURL string) (*LeadsHandler, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	crmClient := crm.New(crmServerURL, "token", "default-seller", zap.NewNop())
	pl := pipeline.New(pipeline.Config{CRM: crmClient, Logger: zap.NewNop()})
	workers := pool.NewGoroutinePool(pool.DefaultGoroutinePoolConfig())

	h := NewLeadsHandler(gormDB, crmClient, pl, workers, zap.NewNop())
	return h, mock, func() { workers.Close(); mockDB.Close() }
}

func TestLeadsHandler_HandleCreate_MissingFields(t *testing.T) {
	h, _, closeFn := newTestLeadsHandler(t, "http://example.invalid")
	defer closeFn()

	body, _ := json.Marshal(map[string]string{"phone": "11999998888"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadsHandler_HandleCreate_Success(t *testing.T) {
	crmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "lead-123"}})
	}))
	defer crmServer.Close()

	h, mock, closeFn := newTestLeadsHandler(t, crmServer.URL)
	defer closeFn()

	mock.ExpectExec(`INSERT INTO "core"\."inbound_lead_tracking"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE "core"\."inbound_lead_tracking"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body, _ := json.Marshal(map[string]string{"name": "Joao", "phone": "11999998888"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestLeadsHandler_HandleProcess_MissingID(t *testing.T) {
	h, _, closeFn := newTestLeadsHandler(t, "http://example.invalid")
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/process", nil)
	rec := httptest.NewRecorder()

	h.HandleProcess(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadsHandler_HandleProcess_FetchLeadFails(t *testing.T) {
	crmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer crmServer.Close()

	h, _, closeFn := newTestLeadsHandler(t, crmServer.URL)
	defer closeFn()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/process?id=lead-1", nil)
	rec := httptest.NewRecorder()

	h.HandleProcess(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
}
