package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/breaker"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/cache"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/storage"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/deepenrich"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/taxid"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_Tier1CacheHit_ShortCircuitsAndDispatches(t *testing.T) {
	var messagesPosted []string
	crmSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		messagesPosted = append(messagesPosted, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)
	caches.ContactToParty.Put("phone:11988887777", []byte("cached message body"))

	p := New(Config{
		Caches: caches,
		CRM:    crm.New(crmSrv.URL, "token", "seller-1", zap.NewNop()),
		Logger: zap.NewNop(),
	})

	result := p.Run(context.Background(), Input{LeadID: "lead-1", Phone: "(11) 98888-7777"})

	require.NoError(t, result.Err)
	assert.True(t, result.Dispatched)
	assert.Equal(t, "cached message body", result.Message)
	assert.Len(t, messagesPosted, 1)
}

func TestPipeline_NoValidIdentifier_ReturnsError(t *testing.T) {
	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)

	p := New(Config{Caches: caches, Logger: zap.NewNop()})
	result := p.Run(context.Background(), Input{LeadID: "lead-2", Phone: "123"})

	assert.Error(t, result.Err)
	assert.False(t, result.Dispatched)
}

func TestPipeline_Tier3SamePerson_EnrichesOnceAndLabelsSamePerson(t *testing.T) {
	taxSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"tax_id": "11144477735"})
	})
	deepSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"basic":    map[string]string{"name": "ANA TESTE", "birth_date": "20/05/1990", "sex": "F - FEMININO"},
			"economic": map[string]string{"reported_income": "1.000,00", "risk_label": "LOW"},
		})
	})
	var posted string
	crmSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data struct {
				Attributes struct {
					Text string `json:"text"`
				} `json:"attributes"`
			} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		posted = body.Data.Attributes.Text
		w.WriteHeader(http.StatusOK)
	})

	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)

	p := New(Config{
		Caches:         caches,
		TaxIDResolver:  taxid.New(taxSrv.URL, "user", "pass"),
		DeepEnrichment: deepenrich.New(deepSrv.URL, "key"),
		CRM:            crm.New(crmSrv.URL, "token", "seller-1", zap.NewNop()),
		Logger:         zap.NewNop(),
	})

	result := p.Run(context.Background(), Input{
		LeadID: "lead-3",
		Phone:  "11988887777",
		Email:  "ana@example.com",
	})

	require.NoError(t, result.Err)
	assert.True(t, result.Dispatched)
	assert.Contains(t, posted, "[\U0001F4DE\U0001F4E7 Same person]")
	assert.Contains(t, posted, "1990-05-20")
}

func TestPipeline_Tier3TwoDifferentTaxIDs_LabelsTwoIdentifiers(t *testing.T) {
	callCount := 0
	taxSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount%2 == 1 {
			_ = json.NewEncoder(w).Encode(map[string]string{"tax_id": "11144477735"})
		} else {
			_ = json.NewEncoder(w).Encode(map[string]string{"tax_id": "00000000191"})
		}
	})
	deepSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"basic": map[string]string{"name": "SOMEONE"}})
	})
	var posted string
	crmSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data struct {
				Attributes struct {
					Text string `json:"text"`
				} `json:"attributes"`
			} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		posted = body.Data.Attributes.Text
		w.WriteHeader(http.StatusOK)
	})

	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)

	p := New(Config{
		Caches:         caches,
		TaxIDResolver:  taxid.New(taxSrv.URL, "user", "pass"),
		DeepEnrichment: deepenrich.New(deepSrv.URL, "key"),
		CRM:            crm.New(crmSrv.URL, "token", "seller-1", zap.NewNop()),
		Logger:         zap.NewNop(),
	})

	result := p.Run(context.Background(), Input{
		LeadID: "lead-4",
		Phone:  "11988887777",
		Email:  "ana@example.com",
	})

	require.NoError(t, result.Err)
	assert.Contains(t, posted, "[⚠ Two identifiers]")
	assert.Contains(t, posted, "---")
}

func TestPipeline_DispatchFailure_ReturnsErrorAndIsNotDispatched(t *testing.T) {
	taxSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"tax_id": "11144477735"})
	})
	deepSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"basic": map[string]string{"name": "SOMEONE"}})
	})
	crmSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// non-5xx so the retry wrapper treats this as non-retryable and
		// the pipeline fails fast instead of sleeping through a backoff.
		w.WriteHeader(http.StatusBadRequest)
	})

	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)

	p := New(Config{
		Caches:         caches,
		TaxIDResolver:  taxid.New(taxSrv.URL, "user", "pass"),
		DeepEnrichment: deepenrich.New(deepSrv.URL, "key"),
		CRM:            crm.New(crmSrv.URL, "token", "seller-1", zap.NewNop()),
		Logger:         zap.NewNop(),
	})

	result := p.Run(context.Background(), Input{LeadID: "lead-5", Phone: "11988887777"})

	assert.Error(t, result.Err)
	assert.False(t, result.Dispatched)
}

func TestPipeline_Tier1_DistinguishesPositiveNegativeAndMiss(t *testing.T) {
	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)
	caches.ContactToParty.Put("phone:11988887777", []byte("cached message"))
	caches.ContactToParty.Put("phone:11900000000", []byte{})

	p := New(Config{Caches: caches, Logger: zap.NewNop()})

	msg, outcome := p.tier1("11988887777", true, "", false)
	assert.Equal(t, tier1Hit, outcome)
	assert.Equal(t, "cached message", msg)

	_, outcome = p.tier1("11900000000", true, "", false)
	assert.Equal(t, tier1NegativeHit, outcome)

	_, outcome = p.tier1("11911111111", true, "", false)
	assert.Equal(t, tier1Miss, outcome)
}

func newSQLMockEngine(t *testing.T) (*storage.Engine, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	return storage.New(gormDB, breaker.New(breaker.Config{}), zap.NewNop()), mock
}

func TestPipeline_Tier2Hit_ComposesMessageFromCachedProfileAndSeedsTier1(t *testing.T) {
	store, mock := newSQLMockEngine(t)

	profile := EnrichedProfile{TaxID: "11144477735", Name: "ANA TESTE", BirthDate: "1990-05-20"}
	normalized, err := json.Marshal(profile)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"party_id", "tax_id", "normalized_data"}).
		AddRow(uuid.New(), "11144477735", normalized)
	mock.ExpectQuery(`p\.id as party_id`).WillReturnRows(rows)

	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)

	p := New(Config{Caches: caches, Store: store, Logger: zap.NewNop()})

	message, ok := p.tier2(context.Background(), "11988887777", true, "", false)
	require.True(t, ok)
	assert.Contains(t, message, "ANA TESTE")
	assert.Contains(t, message, "1990-05-20")

	cached, outcome := p.tier1("11988887777", true, "", false)
	assert.Equal(t, tier1Hit, outcome)
	assert.Equal(t, message, cached)
}

func TestPipeline_NoTaxIDResolved_CachesNegativeResult(t *testing.T) {
	taxSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"tax_id": ""})
	})

	caches := cache.NewManager(zap.NewNop())
	t.Cleanup(caches.Close)

	p := New(Config{
		Caches:        caches,
		TaxIDResolver: taxid.New(taxSrv.URL, "user", "pass"),
		Logger:        zap.NewNop(),
	})

	result := p.Run(context.Background(), Input{LeadID: "lead-6", Phone: "11988887777"})
	assert.Error(t, result.Err)

	_, outcome := p.tier1("11988887777", true, "", false)
	assert.Equal(t, tier1NegativeHit, outcome)
}
