package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrInvalidSubscriptionType = errors.New("invalid_subscription_type")
	ErrInvalidDuration         = errors.New("invalid_duration")
	ErrInvalidPaymentMethod    = errors.New("invalid_payment_method")
	ErrInvalidPaymentStatus    = errors.New("invalid_payment_status")
	ErrInvalidEntityID         = errors.New("invalid_entity_id")
	ErrInvalidSubscriptionID   = errors.New("invalid_subscription_id")
	ErrInvalidTransactionID    = errors.New("invalid_transaction_id")
	ErrPriceNotConfigured      = errors.New("price_not_configured")
	ErrPaymentNotConfigured    = errors.New("payment_provider_not_configured")
	ErrRejectionReasonRequired = errors.New("rejection_reason_required")
	ErrNotCashPayment          = errors.New("payment_method_not_verifiable")
	ErrNotTransferPayment      = errors.New("payment_method_not_transfer")
	ErrInvalidPaymentReference = errors.New("invalid_payment_reference")
	ErrAmountMismatch          = errors.New("payment_amount_mismatch")

	ErrForbidden = errors.New("forbidden")

	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrTransactionNotFound  = errors.New("transaction_not_found")

	ErrActiveSubscriptionExists = errors.New("active_subscription_exists")
	ErrPurchaseInProgress       = errors.New("purchase_in_progress")
	ErrAlreadyVerified          = errors.New("payment_already_verified")
	ErrInvalidStatusTransition  = errors.New("invalid_status_transition")

	ErrPersistence = errors.New("persistence_failure")
)

// ActiveSubscriptionExistsError names the subscription blocking a purchase.
type ActiveSubscriptionExistsError struct {
	Tier      string
	ExpiresAt time.Time
}

func (e *ActiveSubscriptionExistsError) Error() string {
	return fmt.Sprintf("an active %s VIP subscription already exists until %s",
		e.Tier, e.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *ActiveSubscriptionExistsError) Unwrap() error { return ErrActiveSubscriptionExists }

// StatusConflictError reports an operation refused because of the current status.
type StatusConflictError struct {
	Resource string
	Action   string
	Status   string
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("cannot %s %s with status: %s", e.Action, e.Resource, e.Status)
}

func (e *StatusConflictError) Unwrap() error { return ErrInvalidStatusTransition }

// PersistenceError wraps a storage failure so it classifies as internal.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
