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
	settlementdomain "github.com/pattamap/pattamap-vip/internal/settlement/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/pattamap/pattamap-vip/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  subscriptiondomain.Repository

	authz    authorization.Service
	notifier notificationdomain.Dispatcher
	metrics  *metrics.Metrics
	workflow *metrics.WorkflowMetrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  subscriptiondomain.Repository

	Authz    authorization.Service
	Notifier notificationdomain.Dispatcher
	Metrics  *metrics.Metrics         `optional:"true"`
	Workflow *metrics.WorkflowMetrics `optional:"true"`
}

func NewService(p ServiceParam) settlementdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settlement.service"),
		clock: p.Clock,
		repo:  p.Repo,

		authz:    p.Authz,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		workflow: p.Workflow,
	}
}

// VerifyPayment confirms a pending cash payment and activates its
// subscription. Both rows change in one database transaction.
func (s *Service) VerifyPayment(ctx context.Context, req settlementdomain.VerifyRequest) (*subscriptiondomain.Subscription, error) {
	if err := s.authorize(ctx, req.AdminID, authorization.ActionVIPPaymentVerify); err != nil {
		return nil, err
	}

	transaction, err := s.loadTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	switch {
	case transaction.Status == subscriptiondomain.PaymentStatusCompleted:
		return nil, subscriptiondomain.ErrAlreadyVerified
	case transaction.PaymentMethod != subscriptiondomain.PaymentMethodCash:
		return nil, subscriptiondomain.ErrNotCashPayment
	case transaction.Status != subscriptiondomain.PaymentStatusPending:
		return nil, &subscriptiondomain.StatusConflictError{
			Resource: "transaction",
			Action:   "verify",
			Status:   string(transaction.Status),
		}
	}

	now := s.clock.Now()
	adminID := req.AdminID
	subscription, err := s.activate(ctx, transaction, activation{
		action:     "verify",
		verifiedBy: &adminID,
		notes:      optionalNotes(req.Notes),
	}, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, settlementdomain.DecisionVerified, string(transaction.PaymentMethod))
	s.notifyActivated(ctx, transaction, subscription)

	s.log.Info("vip payment verified",
		zap.String("transaction_id", transaction.ID.String()),
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("admin_id", adminID.String()),
	)

	subscription.Annotate(now)
	return subscription, nil
}

// ConfirmTransfer settles a pending PromptPay transfer reported by the
// payment provider. It applies the same guards as VerifyPayment and
// additionally requires the received amount to match the price.
func (s *Service) ConfirmTransfer(ctx context.Context, req settlementdomain.ConfirmTransferRequest) (*subscriptiondomain.Subscription, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, subscriptiondomain.ErrInvalidPaymentReference
	}

	transaction, err := s.repo.FindTransactionByPromptPayReference(ctx, s.db, reference)
	if err != nil {
		return nil, subscriptiondomain.PersistenceError("find_transaction", err)
	}
	if transaction == nil {
		return nil, subscriptiondomain.ErrTransactionNotFound
	}
	switch {
	case transaction.PaymentMethod != subscriptiondomain.PaymentMethodPromptPay:
		return nil, subscriptiondomain.ErrNotTransferPayment
	case transaction.Status == subscriptiondomain.PaymentStatusCompleted:
		return nil, subscriptiondomain.ErrAlreadyVerified
	case transaction.Status != subscriptiondomain.PaymentStatusPending:
		return nil, &subscriptiondomain.StatusConflictError{
			Resource: "transaction",
			Action:   "confirm",
			Status:   string(transaction.Status),
		}
	case req.AmountSatang != transaction.Amount*100:
		return nil, subscriptiondomain.ErrAmountMismatch
	}

	now := s.clock.Now()
	notes := "PromptPay transfer confirmed"
	if eventID := strings.TrimSpace(req.EventID); eventID != "" {
		notes = fmt.Sprintf("%s (event %s)", notes, eventID)
	}
	subscription, err := s.activate(ctx, transaction, activation{
		action: "confirm",
		notes:  &notes,
	}, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, settlementdomain.DecisionConfirmed, string(transaction.PaymentMethod))
	s.notifyActivated(ctx, transaction, subscription)

	s.log.Info("vip transfer confirmed",
		zap.String("transaction_id", transaction.ID.String()),
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("event_id", req.EventID),
	)

	subscription.Annotate(now)
	return subscription, nil
}

type activation struct {
	action     string
	verifiedBy *snowflake.ID
	notes      *string
}

// activate completes a pending transaction and activates its subscription
// in one database transaction. Another active subscription for the same
// entity blocks the activation.
func (s *Service) activate(ctx context.Context, transaction *subscriptiondomain.Transaction, a activation, now time.Time) (*subscriptiondomain.Subscription, error) {
	completed := subscriptiondomain.PaymentStatusCompleted
	active := subscriptiondomain.StatusActive

	var verifiedAt *time.Time
	if a.verifiedBy != nil {
		verifiedAt = &now
	}

	var subscription *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.repo.FindSubscriptionByID(ctx, tx, transaction.SubscriptionType, transaction.SubscriptionID)
		if err != nil {
			return subscriptiondomain.PersistenceError("find_subscription", err)
		}
		if pending == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		current, err := s.repo.FindActiveSubscription(ctx, tx, transaction.SubscriptionType, pending.EntityID, now)
		if err != nil {
			return subscriptiondomain.PersistenceError("find_active_subscription", err)
		}
		if current != nil && current.ID != pending.ID {
			return &subscriptiondomain.ActiveSubscriptionExistsError{
				Tier:      current.Tier,
				ExpiresAt: current.ExpiresAt,
			}
		}

		affected, err := s.repo.UpdateTransaction(ctx, tx, transaction.ID, subscriptiondomain.TransactionUpdate{
			Status:          &completed,
			AdminVerifiedBy: a.verifiedBy,
			AdminVerifiedAt: verifiedAt,
			AdminNotes:      a.notes,
			UpdatedAt:       now,
		}, subscriptiondomain.PaymentStatusPending)
		if err != nil {
			s.workflow.IncWriteFailure(a.action+"_transaction", err)
			return subscriptiondomain.PersistenceError(a.action+"_transaction", err)
		}
		if affected == 0 {
			return s.transactionConflict(ctx, tx, transaction.ID, a.action)
		}

		affected, err = s.repo.UpdateSubscription(ctx, tx, transaction.SubscriptionType, transaction.SubscriptionID, subscriptiondomain.SubscriptionUpdate{
			Status:          &active,
			PaymentStatus:   &completed,
			AdminVerifiedBy: a.verifiedBy,
			AdminVerifiedAt: verifiedAt,
			AdminNotes:      a.notes,
			UpdatedAt:       now,
		}, subscriptiondomain.StatusPendingPayment)
		if err != nil {
			s.workflow.IncWriteFailure("activate_subscription", err)
			return subscriptiondomain.PersistenceError("activate_subscription", err)
		}

		subscription, err = s.repo.FindSubscriptionByID(ctx, tx, transaction.SubscriptionType, transaction.SubscriptionID)
		if err != nil {
			return subscriptiondomain.PersistenceError("find_subscription", err)
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if affected == 0 {
			return &subscriptiondomain.StatusConflictError{
				Resource: "subscription",
				Action:   "activate",
				Status:   string(subscription.EffectiveStatus(now)),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.workflow.IncTransition(metrics.ResourceTransaction, string(subscriptiondomain.PaymentStatusPending), string(completed))
	s.workflow.IncTransition(metrics.ResourceSubscription, string(subscriptiondomain.StatusPendingPayment), string(active))
	return subscription, nil
}

func (s *Service) notifyActivated(ctx context.Context, transaction *subscriptiondomain.Transaction, subscription *subscriptiondomain.Subscription) {
	expiresAt := subscription.ExpiresAt
	s.notifier.Notify(ctx, transaction.UserID, notificationdomain.EventPaymentVerified, notificationdomain.Payload{
		SubscriptionType: string(transaction.SubscriptionType),
		SubscriptionID:   subscription.ID.String(),
		Tier:             subscription.Tier,
		Duration:         subscription.DurationDays,
		PaymentMethod:    string(transaction.PaymentMethod),
		ExpiresAt:        &expiresAt,
	})
}

// RejectPayment fails a pending payment. The subscription cancel that
// follows is best effort; the transaction status is authoritative.
func (s *Service) RejectPayment(ctx context.Context, req settlementdomain.RejectRequest) error {
	reason := strings.TrimSpace(req.Notes)
	if reason == "" {
		return subscriptiondomain.ErrRejectionReasonRequired
	}
	if err := s.authorize(ctx, req.AdminID, authorization.ActionVIPPaymentReject); err != nil {
		return err
	}

	transaction, err := s.loadTransaction(ctx, req.TransactionID)
	if err != nil {
		return err
	}
	if transaction.Status != subscriptiondomain.PaymentStatusPending {
		return &subscriptiondomain.StatusConflictError{
			Resource: "transaction",
			Action:   "reject",
			Status:   string(transaction.Status),
		}
	}

	now := s.clock.Now()
	adminID := req.AdminID
	failed := subscriptiondomain.PaymentStatusFailed
	affected, err := s.repo.UpdateTransaction(ctx, s.db, transaction.ID, subscriptiondomain.TransactionUpdate{
		Status:          &failed,
		AdminVerifiedBy: &adminID,
		AdminVerifiedAt: &now,
		AdminNotes:      &reason,
		UpdatedAt:       now,
	}, subscriptiondomain.PaymentStatusPending)
	if err != nil {
		s.workflow.IncWriteFailure("reject_transaction", err)
		return subscriptiondomain.PersistenceError("reject_transaction", err)
	}
	if affected == 0 {
		return s.transactionConflict(ctx, s.db, transaction.ID, "reject")
	}
	s.workflow.IncTransition(metrics.ResourceTransaction, string(subscriptiondomain.PaymentStatusPending), string(failed))

	tier := string(transaction.SubscriptionType)
	s.cancelRejectedSubscription(ctx, transaction, reason, now)
	if subscription, err := s.repo.FindSubscriptionByID(ctx, s.db, transaction.SubscriptionType, transaction.SubscriptionID); err == nil && subscription != nil {
		tier = subscription.Tier
	}

	s.metrics.RecordSettlement(ctx, settlementdomain.DecisionRejected, string(transaction.PaymentMethod))
	s.notifier.Notify(ctx, transaction.UserID, notificationdomain.EventPaymentRejected, notificationdomain.Payload{
		SubscriptionType: string(transaction.SubscriptionType),
		SubscriptionID:   transaction.SubscriptionID.String(),
		Tier:             tier,
		PaymentMethod:    string(transaction.PaymentMethod),
		Reason:           reason,
	})

	s.log.Info("vip payment rejected",
		zap.String("transaction_id", transaction.ID.String()),
		zap.String("subscription_id", transaction.SubscriptionID.String()),
		zap.String("admin_id", adminID.String()),
	)
	return nil
}

func (s *Service) cancelRejectedSubscription(ctx context.Context, transaction *subscriptiondomain.Transaction, reason string, now time.Time) {
	cancelled := subscriptiondomain.StatusCancelled
	failed := subscriptiondomain.PaymentStatusFailed
	notes := settlementdomain.RejectionNotePrefix + reason

	affected, err := s.repo.UpdateSubscription(ctx, s.db, transaction.SubscriptionType, transaction.SubscriptionID, subscriptiondomain.SubscriptionUpdate{
		Status:             &cancelled,
		PaymentStatus:      &failed,
		AdminNotes:         &notes,
		CancelledAt:        &now,
		CancellationReason: &notes,
		UpdatedAt:          now,
	}, subscriptiondomain.StatusPendingPayment)
	if err != nil {
		s.workflow.IncWriteFailure("cancel_rejected_subscription", err)
		s.log.Error("failed to cancel subscription for rejected payment",
			zap.String("transaction_id", transaction.ID.String()),
			zap.String("subscription_id", transaction.SubscriptionID.String()),
			zap.Error(err),
		)
		return
	}
	if affected == 0 {
		s.log.Warn("subscription for rejected payment was not pending",
			zap.String("subscription_id", transaction.SubscriptionID.String()),
		)
		return
	}
	s.workflow.IncTransition(metrics.ResourceSubscription, string(subscriptiondomain.StatusPendingPayment), string(cancelled))
}

func (s *Service) ListTransactions(ctx context.Context, req settlementdomain.ListTransactionsRequest) (*settlementdomain.ListTransactionsResult, error) {
	if err := s.authorize(ctx, req.AdminID, authorization.ActionVIPPaymentView); err != nil {
		return nil, err
	}

	filter := subscriptiondomain.TransactionFilter{}
	if strings.TrimSpace(req.PaymentMethod) != "" {
		method, err := subscriptiondomain.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			return nil, err
		}
		filter.PaymentMethod = &method
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := subscriptiondomain.ParsePaymentStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}
	filter.Cursor = cursor

	limit := req.Limit()
	filter.Limit = limit + 1

	items, err := s.repo.ListTransactions(ctx, s.db, filter)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return nil, err
		}
		return nil, subscriptiondomain.PersistenceError("list_transactions", err)
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, limit, func(t subscriptiondomain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: t.ID.String(), CreatedAt: t.CreatedAt}
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []subscriptiondomain.Transaction{}
	}

	return &settlementdomain.ListTransactionsResult{
		Transactions: items,
		PageInfo:     pageInfo,
	}, nil
}

func (s *Service) authorize(ctx context.Context, adminID snowflake.ID, action string) error {
	if adminID == 0 {
		return subscriptiondomain.ErrUnauthenticated
	}
	err := s.authz.Authorize(ctx, adminID, authorization.ObjectVIPPayment, action)
	if err == nil {
		return nil
	}
	if errors.Is(err, authorization.ErrForbidden) {
		return subscriptiondomain.ErrForbidden
	}
	return subscriptiondomain.PersistenceError("authorize", err)
}

func (s *Service) loadTransaction(ctx context.Context, rawID string) (*subscriptiondomain.Transaction, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return nil, subscriptiondomain.ErrInvalidTransactionID
	}

	transaction, err := s.repo.FindTransactionByID(ctx, s.db, id)
	if err != nil {
		return nil, subscriptiondomain.PersistenceError("find_transaction", err)
	}
	if transaction == nil {
		return nil, subscriptiondomain.ErrTransactionNotFound
	}
	return transaction, nil
}

// transactionConflict reports the status that won a concurrent settlement.
func (s *Service) transactionConflict(ctx context.Context, db *gorm.DB, id snowflake.ID, action string) error {
	current, err := s.repo.FindTransactionByID(ctx, db, id)
	if err != nil {
		return subscriptiondomain.PersistenceError("find_transaction", err)
	}
	if current == nil {
		return subscriptiondomain.ErrTransactionNotFound
	}
	if action != "reject" && current.Status == subscriptiondomain.PaymentStatusCompleted {
		return subscriptiondomain.ErrAlreadyVerified
	}
	return &subscriptiondomain.StatusConflictError{
		Resource: "transaction",
		Action:   action,
		Status:   string(current.Status),
	}
}

func optionalNotes(notes string) *string {
	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
