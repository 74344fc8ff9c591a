package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pool"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/webhook"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
)

func newTestWebhookHandler(adsKey string) *WebhookHandler {
	crmClient := crm.New("http://example.invalid", "token", "default-seller", zap.NewNop())
	pl := pipeline.New(pipeline.Config{CRM: crmClient, Logger: zap.NewNop()})
	workers := pool.NewGoroutinePool(pool.DefaultGoroutinePoolConfig())
	ingestor := webhook.New(nil, workers, pl, zap.NewNop())
	return NewWebhookHandler(nil, ingestor, crmClient, pl, workers, adsKey, zap.NewNop())
}

func TestWebhookHandler_HandleC2S_MalformedBody(t *testing.T) {
	h := newTestWebhookHandler("ads-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/c2s", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	h.HandleC2S(rec, req)

	var resp Response
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
}

func TestWebhookHandler_HandleGoogleAds_KeyMismatch(t *testing.T) {
	h := newTestWebhookHandler("ads-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/google-ads?google_key=wrong", nil)
	rec := httptest.NewRecorder()

	h.HandleGoogleAds(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_HandleGoogleAds_MissingFields(t *testing.T) {
	h := newTestWebhookHandler("ads-secret")

	body, _ := json.Marshal(map[string]string{"name": "Joao"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/google-ads?google_key=ads-secret", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.HandleGoogleAds(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_HandleGoogleAds_NoKeyConfigured(t *testing.T) {
	h := newTestWebhookHandler("")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/google-ads?google_key=anything", nil)
	rec := httptest.NewRecorder()

	h.HandleGoogleAds(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
