package webhook

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pattamap/pattamap-vip/internal/clock"
	"github.com/pattamap/pattamap-vip/internal/config"
	notificationdomain "github.com/pattamap/pattamap-vip/internal/notification/domain"
	paymentdomain "github.com/pattamap/pattamap-vip/internal/payment/domain"
	"github.com/pattamap/pattamap-vip/internal/payment/repository"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	settlementdomain "github.com/pattamap/pattamap-vip/internal/settlement/domain"
	settlementservice "github.com/pattamap/pattamap-vip/internal/settlement/service"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	subscriptionrepository "github.com/pattamap/pattamap-vip/internal/subscription/repository"
	"github.com/pattamap/pattamap-vip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

var testNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

type fakeSettlement struct {
	settlementdomain.Service

	mu       sync.Mutex
	requests []settlementdomain.ConfirmTransferRequest
	err      error
}

func (f *fakeSettlement) ConfirmTransfer(_ context.Context, req settlementdomain.ConfirmTransferRequest) (*subscriptiondomain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &subscriptiondomain.Subscription{Status: subscriptiondomain.StatusActive}, nil
}

func (f *fakeSettlement) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, snowflake.ID, notificationdomain.EventKind, notificationdomain.Payload) {
}

func newService(t *testing.T, db *gorm.DB, settlement settlementdomain.Service, secret string) *Service {
	t.Helper()
	holder := config.NewStaticPaymentConfigHolder(config.PaymentConfig{
		Currency:  config.CurrencyTHB,
		PromptPay: config.PromptPayConfig{ID: "0812345678", WebhookSecret: secret},
	})
	return NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(testNow),
		Repo:       repository.Provide(),
		Settlement: settlement,
		Config:     holder,
	}).(*Service)
}

func signedHeaders(payload []byte, at time.Time) http.Header {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	headers := http.Header{}
	headers.Set(paymentdomain.SignatureHeader, fmt.Sprintf("t=%s,v1=%s", timestamp, Sign(testSecret, timestamp, payload)))
	return headers
}

func eventPayload(eventID, status, reference, amount string) []byte {
	return []byte(fmt.Sprintf(`{"event_id":%q,"status":%q,"reference":%q,"amount":%s}`, eventID, status, reference, amount))
}

func storedEvent(t *testing.T, db *gorm.DB, eventID string) *paymentdomain.WebhookEvent {
	t.Helper()
	event, err := repository.Provide().FindEvent(context.Background(), db, eventID)
	require.NoError(t, err)
	return event
}

func TestIngestPromptPayConfirmsTransfer(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	settlement := &fakeSettlement{}
	svc := newService(t, db, settlement, testSecret)

	payload := eventPayload("evt_1", "succeeded", "1234", `"3600.50"`)
	require.NoError(t, svc.IngestPromptPay(context.Background(), payload, signedHeaders(payload, testNow)))

	require.Len(t, settlement.requests, 1)
	assert.Equal(t, settlementdomain.ConfirmTransferRequest{
		EventID:      "evt_1",
		Reference:    "1234",
		AmountSatang: 360050,
	}, settlement.requests[0])

	event := storedEvent(t, db, "evt_1")
	require.NotNil(t, event)
	assert.Equal(t, paymentdomain.ProviderPromptPay, event.Provider)
	assert.Equal(t, int64(360050), event.AmountSatang)
}

func TestIngestPromptPayIgnoresRedelivery(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	settlement := &fakeSettlement{}
	svc := newService(t, db, settlement, testSecret)

	payload := eventPayload("evt_2", "succeeded", "1234", "3600")
	headers := signedHeaders(payload, testNow)
	require.NoError(t, svc.IngestPromptPay(context.Background(), payload, headers))
	require.NoError(t, svc.IngestPromptPay(context.Background(), payload, headers))

	assert.Equal(t, 1, settlement.calls())
}

func TestIngestPromptPayRejectsBadSignatures(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	settlement := &fakeSettlement{}
	svc := newService(t, db, settlement, testSecret)
	payload := eventPayload("evt_3", "succeeded", "1234", "3600")

	tampered := eventPayload("evt_3", "succeeded", "1234", "1")
	garbage := http.Header{}
	garbage.Set(paymentdomain.SignatureHeader, "v1=abc")
	cases := map[string]http.Header{
		"missing":  {},
		"tampered": signedHeaders(payload, testNow),
		"stale":    signedHeaders(tampered, testNow.Add(-10*time.Minute)),
		"garbage":  garbage,
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.IngestPromptPay(context.Background(), tampered, headers)
			assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
		})
	}
	assert.Zero(t, settlement.calls())
	assert.Nil(t, storedEvent(t, db, "evt_3"))
}

func TestIngestPromptPayValidation(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	settlement := &fakeSettlement{}
	ctx := context.Background()

	unconfigured := newService(t, db, settlement, "")
	payload := eventPayload("evt_4", "succeeded", "1234", "3600")
	assert.ErrorIs(t, unconfigured.IngestPromptPay(ctx, payload, signedHeaders(payload, testNow)), paymentdomain.ErrWebhookNotConfigured)

	svc := newService(t, db, settlement, testSecret)
	notJSON := []byte("event=evt_4")
	assert.ErrorIs(t, svc.IngestPromptPay(ctx, notJSON, signedHeaders(notJSON, testNow)), paymentdomain.ErrInvalidPayload)

	noReference := eventPayload("evt_4", "succeeded", "", "3600")
	assert.ErrorIs(t, svc.IngestPromptPay(ctx, noReference, signedHeaders(noReference, testNow)), paymentdomain.ErrInvalidEvent)

	badAmount := eventPayload("evt_4", "succeeded", "1234", `"36.001"`)
	assert.ErrorIs(t, svc.IngestPromptPay(ctx, badAmount, signedHeaders(badAmount, testNow)), paymentdomain.ErrInvalidEvent)

	pending := eventPayload("evt_5", "pending", "1234", "3600")
	assert.NoError(t, svc.IngestPromptPay(ctx, pending, signedHeaders(pending, testNow)))

	assert.Zero(t, settlement.calls())
	assert.Nil(t, storedEvent(t, db, "evt_5"))
}

func TestIngestPromptPayReleasesEventWhenConfirmFails(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	settlement := &fakeSettlement{err: subscriptiondomain.ErrAmountMismatch}
	svc := newService(t, db, settlement, testSecret)

	payload := eventPayload("evt_6", "succeeded", "1234", "10")
	err := svc.IngestPromptPay(context.Background(), payload, signedHeaders(payload, testNow))
	assert.ErrorIs(t, err, subscriptiondomain.ErrAmountMismatch)
	assert.Nil(t, storedEvent(t, db, "evt_6"))

	settlement.err = nil
	require.NoError(t, svc.IngestPromptPay(context.Background(), payload, signedHeaders(payload, testNow)))
	assert.Equal(t, 2, settlement.calls())
	assert.NotNil(t, storedEvent(t, db, "evt_6"))
}

func TestIngestPromptPayAcceptsAlreadyConfirmed(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	settlement := &fakeSettlement{err: fmt.Errorf("confirm: %w", subscriptiondomain.ErrAlreadyVerified)}
	svc := newService(t, db, settlement, testSecret)

	payload := eventPayload("evt_7", "succeeded", "1234", "3600")
	require.NoError(t, svc.IngestPromptPay(context.Background(), payload, signedHeaders(payload, testNow)))
	assert.NotNil(t, storedEvent(t, db, "evt_7"))
}

func TestIngestPromptPayActivatesPendingSubscription(t *testing.T) {
	db := testutil.OpenVIPDB(t)
	testutil.Exec(t, db, `INSERT INTO users (id, role) VALUES (10, 'user')`)
	subscriptions := subscriptionrepository.Provide()
	ctx := context.Background()

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	sub := subscriptiondomain.Subscription{
		ID:               node.Generate(),
		SubscriptionType: pricingdomain.EntityTypeEmployee,
		EntityID:         snowflake.ID(500),
		Status:           subscriptiondomain.StatusPendingPayment,
		Tier:             "employee",
		DurationDays:     30,
		PricePaid:        3600,
		StartsAt:         testNow,
		ExpiresAt:        testNow.AddDate(0, 0, 30),
		PaymentMethod:    subscriptiondomain.PaymentMethodPromptPay,
		PaymentStatus:    subscriptiondomain.PaymentStatusPending,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	require.NoError(t, subscriptions.InsertSubscription(ctx, db, &sub))
	reference := sub.ID.String()
	tx := subscriptiondomain.Transaction{
		ID:                 node.Generate(),
		SubscriptionType:   sub.SubscriptionType,
		SubscriptionID:     sub.ID,
		UserID:             snowflake.ID(10),
		Amount:             3600,
		Currency:           subscriptiondomain.CurrencyTHB,
		PaymentMethod:      subscriptiondomain.PaymentMethodPromptPay,
		Status:             subscriptiondomain.PaymentStatusPending,
		PromptPayReference: &reference,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	require.NoError(t, subscriptions.InsertTransaction(ctx, db, &tx))

	settlement := settlementservice.NewService(settlementservice.ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(testNow),
		Repo:     subscriptions,
		Notifier: nopNotifier{},
	})
	svc := newService(t, db, settlement, testSecret)

	payload := eventPayload("evt_8", "succeeded", reference, "3600.00")
	require.NoError(t, svc.IngestPromptPay(ctx, payload, signedHeaders(payload, testNow)))

	stored, err := subscriptions.FindSubscriptionByID(ctx, db, sub.SubscriptionType, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusActive, stored.Status)
	storedTx, err := subscriptions.FindTransactionByID(ctx, db, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.PaymentStatusCompleted, storedTx.Status)

	// A second event for the same transfer is accepted without effect.
	again := eventPayload("evt_9", "succeeded", reference, "3600.00")
	require.NoError(t, svc.IngestPromptPay(ctx, again, signedHeaders(again, testNow)))
}

func TestParseSatang(t *testing.T) {
	cases := map[string]int64{"3600": 360000, "3600.5": 360050, "0.07": 7, "12.30": 1230}
	for input, want := range cases {
		got, err := parseSatang(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	for _, input := range []string{"", "-1", "1.234", "1e3", "abc", ".5", "1.-5"} {
		_, err := parseSatang(input)
		assert.Error(t, err, input)
	}
}
