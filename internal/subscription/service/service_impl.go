package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pattamap/pattamap-vip/internal/authorization"
	"github.com/pattamap/pattamap-vip/internal/clock"
	notificationdomain "github.com/pattamap/pattamap-vip/internal/notification/domain"
	"github.com/pattamap/pattamap-vip/internal/observability/metrics"
	ownershipdomain "github.com/pattamap/pattamap-vip/internal/ownership/domain"
	"github.com/pattamap/pattamap-vip/internal/paymentqr"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository

	ownership ownershipdomain.Service
	pricing   pricingdomain.Service
	authz     authorization.Service
	qr        paymentqr.Generator
	notifier  notificationdomain.Dispatcher
	locker    subscriptiondomain.EntityLocker
	workflow  *metrics.WorkflowMetrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository

	Ownership ownershipdomain.Service
	Pricing   pricingdomain.Service
	Authz     authorization.Service
	QR        paymentqr.Generator
	Notifier  notificationdomain.Dispatcher
	Locker    subscriptiondomain.EntityLocker `optional:"true"`
	Workflow  *metrics.WorkflowMetrics        `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		ownership: p.Ownership,
		pricing:   p.Pricing,
		authz:     p.Authz,
		qr:        p.QR,
		notifier:  p.Notifier,
		locker:    p.Locker,
		workflow:  p.Workflow,
	}
}

func (s *Service) GetPricing(ctx context.Context, subscriptionType string) (pricingdomain.EntityType, []pricingdomain.Price, error) {
	entityType, err := pricingdomain.ParseEntityType(subscriptionType)
	if err != nil {
		return "", nil, subscriptiondomain.ErrInvalidSubscriptionType
	}
	prices, err := s.pricing.List(entityType)
	if err != nil {
		return "", nil, err
	}
	return entityType, prices, nil
}

// Purchase creates a subscription and its payment transaction. The two
// inserts are not atomic: a failed transaction insert deletes the
// subscription again before the error is returned.
func (s *Service) Purchase(ctx context.Context, req subscriptiondomain.PurchaseRequest) (*subscriptiondomain.PurchaseResult, error) {
	if req.UserID == 0 {
		return nil, subscriptiondomain.ErrUnauthenticated
	}

	subscriptionType, err := pricingdomain.ParseEntityType(req.SubscriptionType)
	if err != nil {
		return nil, subscriptiondomain.ErrInvalidSubscriptionType
	}
	duration := pricingdomain.Duration(req.Duration)
	if !duration.Valid() {
		return nil, subscriptiondomain.ErrInvalidDuration
	}
	method, err := subscriptiondomain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	entityID, err := parseID(req.EntityID, subscriptiondomain.ErrInvalidEntityID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizePurchase(ctx, req.UserID, subscriptionType, entityID, method); err != nil {
		if errors.Is(err, subscriptiondomain.ErrForbidden) {
			s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeRejected)
		}
		return nil, err
	}

	release, err := s.lockEntity(ctx, subscriptionType, entityID)
	if err != nil {
		s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeRejected)
		return nil, err
	}
	defer release()

	now := s.clock.Now()
	active, err := s.repo.FindActiveSubscription(ctx, s.db, subscriptionType, entityID, now)
	if err != nil {
		return nil, subscriptiondomain.PersistenceError("find_active_subscription", err)
	}
	if active != nil {
		s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeRejected)
		return nil, &subscriptiondomain.ActiveSubscriptionExistsError{
			Tier:      active.Tier,
			ExpiresAt: active.ExpiresAt,
		}
	}

	price, ok := s.pricing.GetPrice(subscriptionType, duration)
	if !ok {
		return nil, subscriptiondomain.ErrPriceNotConfigured
	}

	subscription := subscriptiondomain.Subscription{
		ID:               s.genID.Generate(),
		SubscriptionType: subscriptionType,
		EntityID:         entityID,
		Status:           subscriptiondomain.StatusPendingPayment,
		Tier:             string(subscriptionType),
		DurationDays:     duration.Days(),
		PricePaid:        price.Price,
		StartsAt:         now,
		ExpiresAt:        now.AddDate(0, 0, duration.Days()),
		PaymentMethod:    method,
		PaymentStatus:    subscriptiondomain.PaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if method == subscriptiondomain.PaymentMethodAdminGrant {
		adminID := req.UserID
		verifiedAt := now
		subscription.Status = subscriptiondomain.StatusActive
		subscription.PaymentStatus = subscriptiondomain.PaymentStatusCompleted
		subscription.AdminVerifiedBy = &adminID
		subscription.AdminVerifiedAt = &verifiedAt
	}

	if err := s.repo.InsertSubscription(ctx, s.db, &subscription); err != nil {
		s.workflow.IncWriteFailure("insert_subscription", err)
		s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeFailed)
		return nil, subscriptiondomain.PersistenceError("insert_subscription", err)
	}

	transaction := subscriptiondomain.Transaction{
		ID:               s.genID.Generate(),
		SubscriptionType: subscriptionType,
		SubscriptionID:   subscription.ID,
		UserID:           req.UserID,
		Amount:           price.Price,
		Currency:         subscriptiondomain.CurrencyTHB,
		PaymentMethod:    method,
		Status:           subscription.PaymentStatus,
		AdminVerifiedBy:  subscription.AdminVerifiedBy,
		AdminVerifiedAt:  subscription.AdminVerifiedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if method == subscriptiondomain.PaymentMethodPromptPay {
		code, err := s.qr.Generate(price.Price, subscription.ID.String())
		if err != nil {
			s.rollback(ctx, subscription, "generate_promptpay_qr")
			s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeFailed)
			if errors.Is(err, paymentqr.ErrNotConfigured) {
				return nil, subscriptiondomain.ErrPaymentNotConfigured
			}
			return nil, fmt.Errorf("generate promptpay qr: %w", err)
		}
		transaction.PromptPayQRCode = &code.QRCode
		transaction.PromptPayPayload = &code.Payload
		transaction.PromptPayReference = &code.Reference
	}

	if err := s.repo.InsertTransaction(ctx, s.db, &transaction); err != nil {
		s.workflow.IncWriteFailure("insert_transaction", err)
		s.rollback(ctx, subscription, "insert_transaction")
		s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeFailed)
		return nil, subscriptiondomain.PersistenceError("insert_transaction", err)
	}

	transactionID := transaction.ID
	if _, err := s.repo.UpdateSubscription(ctx, s.db, subscriptionType, subscription.ID, subscriptiondomain.SubscriptionUpdate{
		TransactionID: &transactionID,
		UpdatedAt:     now,
	}); err != nil {
		s.workflow.IncWriteFailure("link_transaction", err)
		s.log.Warn("failed to link transaction to subscription",
			zap.String("subscription_id", subscription.ID.String()),
			zap.String("transaction_id", transaction.ID.String()),
			zap.Error(err),
		)
	} else {
		subscription.TransactionID = &transactionID
	}

	s.notifier.Notify(ctx, req.UserID, notificationdomain.EventPurchaseConfirmed, notificationdomain.Payload{
		SubscriptionType: string(subscriptionType),
		SubscriptionID:   subscription.ID.String(),
		Tier:             subscription.Tier,
		Duration:         subscription.DurationDays,
		PaymentMethod:    string(method),
	})

	s.workflow.IncPurchase(string(subscriptionType), string(method), metrics.OutcomeSuccess)
	s.log.Info("vip subscription purchased",
		zap.String("subscription_type", string(subscriptionType)),
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("entity_id", entityID.String()),
		zap.String("payment_method", string(method)),
		zap.Int64("amount", price.Price),
	)

	subscription.Annotate(now)
	return &subscriptiondomain.PurchaseResult{
		Message:      subscriptiondomain.PurchaseMessage(method),
		Subscription: subscription,
		Transaction:  transaction,
	}, nil
}

func (s *Service) Cancel(ctx context.Context, req subscriptiondomain.CancelRequest) (*subscriptiondomain.Subscription, error) {
	if req.UserID == 0 {
		return nil, subscriptiondomain.ErrUnauthenticated
	}
	subscriptionType, err := pricingdomain.ParseEntityType(req.SubscriptionType)
	if err != nil {
		return nil, subscriptiondomain.ErrInvalidSubscriptionType
	}
	subscriptionID, err := parseID(req.SubscriptionID, subscriptiondomain.ErrInvalidSubscriptionID)
	if err != nil {
		return nil, err
	}

	subscription, err := s.repo.FindSubscriptionByID(ctx, s.db, subscriptionType, subscriptionID)
	if err != nil {
		return nil, subscriptiondomain.PersistenceError("find_subscription", err)
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	allowed, err := s.ownership.CanPurchase(ctx, req.UserID, subscriptionType, subscription.EntityID)
	if err != nil {
		return nil, subscriptiondomain.PersistenceError("check_ownership", err)
	}
	if !allowed {
		return nil, subscriptiondomain.ErrForbidden
	}

	now := s.clock.Now()
	if status := subscription.EffectiveStatus(now); status != subscriptiondomain.StatusActive {
		return nil, &subscriptiondomain.StatusConflictError{
			Resource: "subscription",
			Action:   "cancel",
			Status:   string(status),
		}
	}

	cancelled := subscriptiondomain.StatusCancelled
	affected, err := s.repo.UpdateSubscription(ctx, s.db, subscriptionType, subscription.ID, subscriptiondomain.SubscriptionUpdate{
		Status:      &cancelled,
		CancelledAt: &now,
		UpdatedAt:   now,
	}, subscriptiondomain.StatusActive)
	if err != nil {
		s.workflow.IncWriteFailure("cancel_subscription", err)
		return nil, subscriptiondomain.PersistenceError("cancel_subscription", err)
	}
	if affected == 0 {
		return nil, s.conflictFromCurrent(ctx, subscriptionType, subscription.ID, now)
	}
	s.workflow.IncTransition(metrics.ResourceSubscription, string(subscriptiondomain.StatusActive), string(cancelled))

	subscription.Status = cancelled
	subscription.CancelledAt = &now
	subscription.UpdatedAt = now
	subscription.Annotate(now)

	s.notifier.Notify(ctx, req.UserID, notificationdomain.EventSubscriptionCancelled, notificationdomain.Payload{
		SubscriptionType: string(subscriptionType),
		SubscriptionID:   subscription.ID.String(),
		Tier:             subscription.Tier,
	})

	s.log.Info("vip subscription cancelled",
		zap.String("subscription_type", string(subscriptionType)),
		zap.String("subscription_id", subscription.ID.String()),
	)
	return subscription, nil
}

func (s *Service) ListMine(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.MySubscriptions, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrUnauthenticated
	}

	now := s.clock.Now()
	result := &subscriptiondomain.MySubscriptions{
		Employees:      []subscriptiondomain.Subscription{},
		Establishments: []subscriptiondomain.Subscription{},
	}
	for _, entityType := range []pricingdomain.EntityType{pricingdomain.EntityTypeEmployee, pricingdomain.EntityTypeEstablishment} {
		items, err := s.repo.ListSubscriptionsForUser(ctx, s.db, entityType, userID)
		if err != nil {
			return nil, subscriptiondomain.PersistenceError("list_subscriptions", err)
		}
		for i := range items {
			items[i].Annotate(now)
		}
		if entityType == pricingdomain.EntityTypeEmployee {
			result.Employees = append(result.Employees, items...)
		} else {
			result.Establishments = append(result.Establishments, items...)
		}
	}
	return result, nil
}

// authorizePurchase lets admins grant VIP for any entity; every other
// payment method requires the caller to act for the entity.
func (s *Service) authorizePurchase(ctx context.Context, userID snowflake.ID, subscriptionType pricingdomain.EntityType, entityID snowflake.ID, method subscriptiondomain.PaymentMethod) error {
	if method == subscriptiondomain.PaymentMethodAdminGrant {
		// The grant permission replaces the ownership check, so admins are not
		// required to be linked to the entity.
		err := s.authz.Authorize(ctx, userID, authorization.ObjectVIPSubscription, authorization.ActionVIPSubscriptionGrant)
		if err == nil {
			return nil
		}
		if errors.Is(err, authorization.ErrForbidden) {
			return subscriptiondomain.ErrForbidden
		}
		return subscriptiondomain.PersistenceError("authorize_grant", err)
	}

	allowed, err := s.ownership.CanPurchase(ctx, userID, subscriptionType, entityID)
	if err != nil {
		return subscriptiondomain.PersistenceError("check_ownership", err)
	}
	if !allowed {
		return subscriptiondomain.ErrForbidden
	}
	return nil
}

// lockEntity holds the purchase lock for the entity when a locker is
// configured. Lock backend errors degrade to an unlocked purchase.
func (s *Service) lockEntity(ctx context.Context, subscriptionType pricingdomain.EntityType, entityID snowflake.ID) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	token, acquired, err := s.locker.LockEntity(ctx, string(subscriptionType), entityID.String())
	if err != nil {
		s.log.Warn("purchase lock unavailable", zap.String("entity_id", entityID.String()), zap.Error(err))
		return noop, nil
	}
	if !acquired {
		return nil, subscriptiondomain.ErrPurchaseInProgress
	}

	return func() {
		if err := s.locker.ReleaseEntity(context.WithoutCancel(ctx), string(subscriptionType), entityID.String(), token); err != nil {
			s.log.Warn("failed to release purchase lock", zap.String("entity_id", entityID.String()), zap.Error(err))
		}
	}, nil
}

// rollback removes a subscription whose purchase could not complete. It
// runs even if the request context is already cancelled.
func (s *Service) rollback(ctx context.Context, subscription subscriptiondomain.Subscription, cause string) {
	err := s.repo.DeleteSubscription(context.WithoutCancel(ctx), s.db, subscription.SubscriptionType, subscription.ID)
	if err != nil {
		s.workflow.IncRollback(metrics.RollbackFailed)
		s.log.Error("failed to roll back subscription",
			zap.String("subscription_type", string(subscription.SubscriptionType)),
			zap.String("subscription_id", subscription.ID.String()),
			zap.String("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.workflow.IncRollback(metrics.RollbackSucceeded)
	s.log.Warn("subscription rolled back",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("cause", cause),
	)
}

func (s *Service) conflictFromCurrent(ctx context.Context, subscriptionType pricingdomain.EntityType, id snowflake.ID, now time.Time) error {
	current, err := s.repo.FindSubscriptionByID(ctx, s.db, subscriptionType, id)
	if err != nil {
		return subscriptiondomain.PersistenceError("find_subscription", err)
	}
	if current == nil {
		return subscriptiondomain.ErrSubscriptionNotFound
	}
	return &subscriptiondomain.StatusConflictError{
		Resource: "subscription",
		Action:   "cancel",
		Status:   string(current.EffectiveStatus(now)),
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, invalidErr
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil || id <= 0 {
		return 0, invalidErr
	}
	return id, nil
}
