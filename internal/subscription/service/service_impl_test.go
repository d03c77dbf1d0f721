package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pattamap/pattamap-vip/internal/authorization"
	"github.com/pattamap/pattamap-vip/internal/clock"
	"github.com/pattamap/pattamap-vip/internal/config"
	notificationdomain "github.com/pattamap/pattamap-vip/internal/notification/domain"
	"github.com/pattamap/pattamap-vip/internal/observability/metrics"
	ownershiprepository "github.com/pattamap/pattamap-vip/internal/ownership/repository"
	ownershipservice "github.com/pattamap/pattamap-vip/internal/ownership/service"
	"github.com/pattamap/pattamap-vip/internal/paymentqr"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	pricingservice "github.com/pattamap/pattamap-vip/internal/pricing/service"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/pattamap/pattamap-vip/internal/subscription/repository"
	"github.com/pattamap/pattamap-vip/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	adminUser    = snowflake.ID(1)
	selfUser     = snowflake.ID(10)
	ownerUser    = snowflake.ID(11)
	strangerUser = snowflake.ID(13)

	employeeID      = snowflake.ID(100)
	establishmentID = snowflake.ID(200)
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type recordedNotification struct {
	UserID  snowflake.ID
	Kind    notificationdomain.EventKind
	Payload notificationdomain.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID snowflake.ID, kind notificationdomain.EventKind, payload notificationdomain.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedNotification{UserID: userID, Kind: kind, Payload: payload})
}

func (n *recordingNotifier) kinds() []notificationdomain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notificationdomain.EventKind, 0, len(n.events))
	for _, e := range n.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fakeAuthz struct {
	admins map[snowflake.ID]bool
}

func (a fakeAuthz) Authorize(_ context.Context, userID snowflake.ID, _ string, _ string) error {
	if a.admins[userID] {
		return nil
	}
	return authorization.ErrForbidden
}

type failingTransactionRepo struct {
	subscriptiondomain.Repository
}

func (r failingTransactionRepo) InsertTransaction(context.Context, *gorm.DB, *subscriptiondomain.Transaction) error {
	return errors.New("insert rejected")
}

// stuckRollbackRepo also fails the compensating delete.
type stuckRollbackRepo struct {
	failingTransactionRepo
}

func (r stuckRollbackRepo) DeleteSubscription(context.Context, *gorm.DB, pricingdomain.EntityType, snowflake.ID) error {
	return errors.New("delete timed out")
}

// unlinkableRepo fails only the update that links the transaction.
type unlinkableRepo struct {
	subscriptiondomain.Repository
}

func (r unlinkableRepo) UpdateSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID, update subscriptiondomain.SubscriptionUpdate, fromStatuses ...subscriptiondomain.SubscriptionStatus) (int64, error) {
	if update.TransactionID != nil {
		return 0, errors.New("row locked")
	}
	return r.Repository.UpdateSubscription(ctx, db, subscriptionType, id, update, fromStatuses...)
}

type stubLocker struct {
	acquired bool
	err      error
	released int
}

func (l *stubLocker) LockEntity(context.Context, string, string) (string, bool, error) {
	return "token", l.acquired, l.err
}

func (l *stubLocker) ReleaseEntity(context.Context, string, string, string) error {
	l.released++
	return nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	clock    *clock.FakeClock
	notifier *recordingNotifier
	registry *prometheus.Registry
}

type option func(*ServiceParam)

func withPromptPay(id string) option {
	return func(p *ServiceParam) {
		cfg := config.DefaultPaymentConfig()
		cfg.PromptPay.ID = id
		p.QR = paymentqr.NewGenerator(paymentqr.Params{
			Config: config.NewStaticPaymentConfigHolder(cfg),
			Log:    zap.NewNop(),
		})
	}
}

func withRepo(wrap func(subscriptiondomain.Repository) subscriptiondomain.Repository) option {
	return func(p *ServiceParam) {
		p.Repo = wrap(p.Repo)
	}
}

func withLocker(locker subscriptiondomain.EntityLocker) option {
	return func(p *ServiceParam) {
		p.Locker = locker
	}
}

func setup(t *testing.T, opts ...option) *fixture {
	t.Helper()

	db := testutil.OpenVIPDB(t)
	testutil.Exec(t, db, `INSERT INTO users (id, role) VALUES (?, 'admin'), (?, 'user'), (?, 'user'), (?, 'user')`,
		adminUser, selfUser, ownerUser, strangerUser)
	testutil.Exec(t, db, `INSERT INTO employees (id, user_id) VALUES (?, ?)`, employeeID, selfUser)
	testutil.Exec(t, db, `INSERT INTO establishments (id) VALUES (?)`, establishmentID)
	testutil.Exec(t, db, `INSERT INTO establishment_owners (user_id, establishment_id, owner_role, permissions) VALUES (?, ?, 'owner', '{}')`,
		ownerUser, establishmentID)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(testNow)
	notifier := &recordingNotifier{}
	registry := prometheus.NewRegistry()

	param := ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repository.Provide(),
		Ownership: ownershipservice.NewService(ownershipservice.ServiceParam{
			DB:   db,
			Log:  zap.NewNop(),
			Repo: ownershiprepository.Provide(),
		}),
		Pricing:  pricingservice.NewService(),
		Authz:    fakeAuthz{admins: map[snowflake.ID]bool{adminUser: true}},
		Notifier: notifier,
		Workflow: metrics.NewWorkflowMetricsForTest(registry),
	}
	withPromptPay("")(&param)
	for _, opt := range opts {
		opt(&param)
	}

	return &fixture{
		svc:      NewService(param).(*Service),
		db:       db,
		clock:    fakeClock,
		notifier: notifier,
		registry: registry,
	}
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Count(&n).Error)
	return n
}

func TestPurchaseCashCreatesPendingSubscription(t *testing.T) {
	f := setup(t)

	result, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)

	sub := result.Subscription
	assert.Equal(t, subscriptiondomain.StatusPendingPayment, sub.Status)
	assert.Equal(t, subscriptiondomain.PaymentStatusPending, sub.PaymentStatus)
	assert.Equal(t, int64(3600), sub.PricePaid)
	assert.Equal(t, "employee", sub.Tier)
	assert.Equal(t, testNow.AddDate(0, 0, 30), sub.ExpiresAt)
	require.NotNil(t, sub.TransactionID)
	assert.Equal(t, result.Transaction.ID, *sub.TransactionID)

	assert.Equal(t, int64(3600), result.Transaction.Amount)
	assert.Equal(t, subscriptiondomain.CurrencyTHB, result.Transaction.Currency)
	assert.Equal(t, subscriptiondomain.PaymentStatusPending, result.Transaction.Status)
	assert.Nil(t, result.Transaction.PromptPayQRCode)
	assert.Contains(t, result.Message, "cash")

	stored, err := f.svc.repo.FindSubscriptionByID(context.Background(), f.db, sub.SubscriptionType, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, result.Transaction.ID, *stored.TransactionID)

	assert.Equal(t, []notificationdomain.EventKind{notificationdomain.EventPurchaseConfirmed}, f.notifier.kinds())
	assert.Equal(t, float64(1), testutil.CounterValue(t, f.registry, "pattamap_vip_purchases_total", map[string]string{
		"subscription_type": "employee",
		"payment_method":    "cash",
		"outcome":           metrics.OutcomeSuccess,
	}))
}

func TestPurchaseAdminGrantActivatesImmediately(t *testing.T) {
	f := setup(t)

	result, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         7,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)

	assert.Equal(t, subscriptiondomain.StatusActive, result.Subscription.Status)
	assert.Equal(t, subscriptiondomain.PaymentStatusCompleted, result.Subscription.PaymentStatus)
	assert.Equal(t, int64(3000), result.Subscription.PricePaid)
	require.NotNil(t, result.Subscription.AdminVerifiedBy)
	assert.Equal(t, adminUser, *result.Subscription.AdminVerifiedBy)
	assert.Equal(t, subscriptiondomain.PaymentStatusCompleted, result.Transaction.Status)
	assert.Equal(t, subscriptiondomain.PurchaseMessage(subscriptiondomain.PaymentMethodAdminGrant), result.Message)
}

func TestPurchaseAdminGrantRequiresAdminRole(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         7,
		PaymentMethod:    "admin_grant",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrForbidden)
	assert.Zero(t, f.count(t, "establishment_vip_subscriptions"))
}

func TestPurchaseValidatesInputInOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  subscriptiondomain.PurchaseRequest
		want error
	}{
		{
			name: "type",
			req:  subscriptiondomain.PurchaseRequest{UserID: selfUser, SubscriptionType: "vehicle", Duration: 3, PaymentMethod: "bitcoin"},
			want: subscriptiondomain.ErrInvalidSubscriptionType,
		},
		{
			name: "duration",
			req:  subscriptiondomain.PurchaseRequest{UserID: selfUser, SubscriptionType: "employee", Duration: 3, PaymentMethod: "bitcoin"},
			want: subscriptiondomain.ErrInvalidDuration,
		},
		{
			name: "method",
			req:  subscriptiondomain.PurchaseRequest{UserID: selfUser, SubscriptionType: "employee", Duration: 30, PaymentMethod: "bitcoin"},
			want: subscriptiondomain.ErrInvalidPaymentMethod,
		},
		{
			name: "entity",
			req:  subscriptiondomain.PurchaseRequest{UserID: selfUser, SubscriptionType: "employee", Duration: 30, PaymentMethod: "cash", EntityID: "abc"},
			want: subscriptiondomain.ErrInvalidEntityID,
		},
		{
			name: "unauthenticated",
			req:  subscriptiondomain.PurchaseRequest{SubscriptionType: "employee", Duration: 30, PaymentMethod: "cash"},
			want: subscriptiondomain.ErrUnauthenticated,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Purchase(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPurchaseForbiddenForUnrelatedUser(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           strangerUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrForbidden)
	assert.Zero(t, f.count(t, "employee_vip_subscriptions"))
	assert.Zero(t, f.count(t, "vip_payment_transactions"))
}

func TestPurchaseRejectsWhileActiveSubscriptionExists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         365,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(18250), first.Subscription.PricePaid)

	_, err = f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrActiveSubscriptionExists)

	var conflict *subscriptiondomain.ActiveSubscriptionExistsError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "employee", conflict.Tier)
	assert.True(t, conflict.ExpiresAt.Equal(first.Subscription.ExpiresAt))
	assert.Contains(t, err.Error(), "employee")

	assert.Equal(t, int64(1), f.count(t, "employee_vip_subscriptions"))
	assert.Equal(t, int64(1), f.count(t, "vip_payment_transactions"))
}

func TestPurchaseAllowedAfterActiveSubscriptionExpires(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         7,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         7,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.count(t, "employee_vip_subscriptions"))
}

func TestPurchasePromptPayAttachesQRCode(t *testing.T) {
	f := setup(t, withPromptPay("0812345678"))

	result, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         30,
		PaymentMethod:    "promptpay",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Transaction.PromptPayQRCode)
	assert.Contains(t, *result.Transaction.PromptPayQRCode, "data:image/png;base64,")
	require.NotNil(t, result.Transaction.PromptPayReference)
	assert.Equal(t, result.Subscription.ID.String(), *result.Transaction.PromptPayReference)
	require.NotNil(t, result.Transaction.PromptPayPayload)
	assert.Contains(t, *result.Transaction.PromptPayPayload, "5303764")
	assert.Contains(t, result.Message, "QR")
}

func TestPurchasePromptPayWithoutProviderRollsBack(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         30,
		PaymentMethod:    "promptpay",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrPaymentNotConfigured)
	assert.Zero(t, f.count(t, "establishment_vip_subscriptions"))
	assert.Zero(t, f.count(t, "vip_payment_transactions"))
	assert.Empty(t, f.notifier.kinds())
}

func TestPurchaseTransactionFailureRemovesSubscription(t *testing.T) {
	f := setup(t, withRepo(func(r subscriptiondomain.Repository) subscriptiondomain.Repository {
		return failingTransactionRepo{Repository: r}
	}))

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrPersistence)

	assert.Zero(t, f.count(t, "employee_vip_subscriptions"))
	assert.Zero(t, f.count(t, "vip_payment_transactions"))
	assert.Empty(t, f.notifier.kinds())
	assert.Equal(t, float64(1), testutil.CounterValue(t, f.registry, "pattamap_vip_purchase_rollbacks_total", map[string]string{
		"result": metrics.RollbackSucceeded,
	}))
}

func TestPurchaseReportsInsertFailureWhenRollbackFails(t *testing.T) {
	f := setup(t, withRepo(func(r subscriptiondomain.Repository) subscriptiondomain.Repository {
		return stuckRollbackRepo{failingTransactionRepo{Repository: r}}
	}))

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrPersistence)
	assert.Contains(t, err.Error(), "persistence_failure: insert_transaction: insert rejected")
	assert.NotContains(t, err.Error(), "delete timed out")

	assert.Equal(t, int64(1), f.count(t, "employee_vip_subscriptions"))
	assert.Zero(t, f.count(t, "vip_payment_transactions"))
	assert.Empty(t, f.notifier.kinds())
	assert.Equal(t, float64(1), testutil.CounterValue(t, f.registry, "pattamap_vip_purchase_rollbacks_total", map[string]string{
		"result": metrics.RollbackFailed,
	}))
	assert.Zero(t, testutil.CounterValue(t, f.registry, "pattamap_vip_purchase_rollbacks_total", map[string]string{
		"result": metrics.RollbackSucceeded,
	}))
}

func TestPurchaseSucceedsWhenTransactionLinkFails(t *testing.T) {
	f := setup(t, withRepo(func(r subscriptiondomain.Repository) subscriptiondomain.Repository {
		return unlinkableRepo{Repository: r}
	}))

	result, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Subscription.TransactionID)
	assert.Equal(t, result.Subscription.ID, result.Transaction.SubscriptionID)

	stored, err := f.svc.repo.FindSubscriptionByID(context.Background(), f.db, result.Subscription.SubscriptionType, result.Subscription.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.TransactionID)

	assert.Equal(t, int64(1), f.count(t, "employee_vip_subscriptions"))
	assert.Equal(t, int64(1), f.count(t, "vip_payment_transactions"))
	assert.Equal(t, []notificationdomain.EventKind{notificationdomain.EventPurchaseConfirmed}, f.notifier.kinds())
	assert.Equal(t, float64(1), testutil.CounterValue(t, f.registry, "pattamap_vip_write_failures_total", map[string]string{
		"operation": "link_transaction",
		"reason":    metrics.FailureReasonUnknown,
	}))
}

func TestPurchaseLockNotAcquired(t *testing.T) {
	locker := &stubLocker{acquired: false}
	f := setup(t, withLocker(locker))

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrPurchaseInProgress)
	assert.Zero(t, f.count(t, "employee_vip_subscriptions"))
}

func TestPurchaseProceedsWhenLockBackendFails(t *testing.T) {
	locker := &stubLocker{err: errors.New("redis down")}
	f := setup(t, withLocker(locker))

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)
	assert.Zero(t, locker.released)
}

func TestPurchaseReleasesLock(t *testing.T) {
	locker := &stubLocker{acquired: true}
	f := setup(t, withLocker(locker))

	_, err := f.svc.Purchase(context.Background(), subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
}

func TestCancelActiveSubscription(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	granted, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         90,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	cancelled, err := f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		SubscriptionID:   granted.Subscription.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, testNow.Add(time.Hour), *cancelled.CancelledAt)
	assert.Contains(t, f.notifier.kinds(), notificationdomain.EventSubscriptionCancelled)

	_, err = f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		SubscriptionID:   granted.Subscription.ID.String(),
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidStatusTransition)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestCancelRejectsPendingAndExpired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	pending, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{
		UserID:           selfUser,
		SubscriptionType: "employee",
		SubscriptionID:   pending.Subscription.ID.String(),
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidStatusTransition)
	assert.Contains(t, err.Error(), "pending_payment")

	granted, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         7,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		SubscriptionID:   granted.Subscription.ID.String(),
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidStatusTransition)
	assert.Contains(t, err.Error(), "expired")
}

func TestCancelChecksExistenceThenOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{
		UserID:           strangerUser,
		SubscriptionType: "employee",
		SubscriptionID:   "424242",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)

	granted, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         30,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{
		UserID:           strangerUser,
		SubscriptionType: "employee",
		SubscriptionID:   granted.Subscription.ID.String(),
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrForbidden)
}

func TestListMineIncludesLinkedAndPurchased(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           adminUser,
		SubscriptionType: "employee",
		EntityID:         employeeID.String(),
		Duration:         7,
		PaymentMethod:    "admin_grant",
	})
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, subscriptiondomain.PurchaseRequest{
		UserID:           ownerUser,
		SubscriptionType: "establishment",
		EntityID:         establishmentID.String(),
		Duration:         30,
		PaymentMethod:    "cash",
	})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, selfUser)
	require.NoError(t, err)
	require.Len(t, mine.Employees, 1)
	assert.Empty(t, mine.Establishments)

	f.clock.Advance(8 * 24 * time.Hour)
	mine, err = f.svc.ListMine(ctx, selfUser)
	require.NoError(t, err)
	require.Len(t, mine.Employees, 1)
	assert.True(t, mine.Employees[0].IsExpired)

	admin, err := f.svc.ListMine(ctx, adminUser)
	require.NoError(t, err)
	assert.Len(t, admin.Employees, 1, "purchaser sees granted subscription")

	owner, err := f.svc.ListMine(ctx, ownerUser)
	require.NoError(t, err)
	assert.Empty(t, owner.Employees)
	require.Len(t, owner.Establishments, 1)
	assert.Equal(t, subscriptiondomain.StatusPendingPayment, owner.Establishments[0].Status)
}

func TestGetPricing(t *testing.T) {
	f := setup(t)

	entityType, prices, err := f.svc.GetPricing(context.Background(), "employee")
	require.NoError(t, err)
	assert.Equal(t, "employee", string(entityType))
	require.Len(t, prices, 4)

	_, _, err = f.svc.GetPricing(context.Background(), "vehicle")
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidSubscriptionType)
}
