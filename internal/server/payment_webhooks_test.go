package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pattamap/pattamap-vip/internal/config"
	"github.com/pattamap/pattamap-vip/internal/observability"
	paymentdomain "github.com/pattamap/pattamap-vip/internal/payment/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePaymentWebhook struct {
	payload   []byte
	signature string
	err       error
}

func (f *fakePaymentWebhook) IngestPromptPay(ctx context.Context, payload []byte, headers http.Header) error {
	f.payload = payload
	f.signature = headers.Get(paymentdomain.SignatureHeader)
	return f.err
}

func postWebhook(t *testing.T, engine *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/promptpay", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(paymentdomain.SignatureHeader, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestPromptPayWebhookNeedsNoBearerToken(t *testing.T) {
	ts := newTestServer(t)

	rec := postWebhook(t, ts.engine, `{"event_id":"evt_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.JSONEq(t, `{"event_id":"evt_1"}`, string(ts.webhook.payload))
	assert.Equal(t, "t=1,v1=abc", ts.webhook.signature)
}

func TestPromptPayWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: paymentdomain.ErrInvalidSignature, status: http.StatusUnauthorized, code: "unauthorized"},
		{err: paymentdomain.ErrInvalidPayload, status: http.StatusBadRequest, code: "validation_error"},
		{err: subscriptiondomain.ErrAmountMismatch, status: http.StatusBadRequest, code: "validation_error"},
		{err: subscriptiondomain.ErrTransactionNotFound, status: http.StatusNotFound, code: "not_found"},
		{err: &subscriptiondomain.ActiveSubscriptionExistsError{Tier: "employee"}, status: http.StatusConflict, code: "conflict"},
		{err: paymentdomain.ErrWebhookNotConfigured, status: http.StatusServiceUnavailable, code: "service_unavailable"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.err), func(t *testing.T) {
			ts := newTestServer(t)
			ts.webhook.err = tc.err

			rec := postWebhook(t, ts.engine, `{}`)
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorOf(t, decodeBody(t, rec))["type"])
		})
	}
}

func TestPromptPayWebhookUnavailableWithoutIngester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{}, nil),
		Cfg:             config.Config{AuthJWTSecret: testSecret},
		Log:             zap.NewNop(),
		SubscriptionSvc: &fakeSubscriptionService{},
		SettlementSvc:   &fakeSettlementService{},
	})

	rec := postWebhook(t, s.Engine(), `{}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", errorOf(t, decodeBody(t, rec))["type"])
}
