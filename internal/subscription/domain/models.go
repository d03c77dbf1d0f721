// Package domain contains the VIP subscription and payment transaction models.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
)

const CurrencyTHB = "THB"

// SubscriptionStatus is the stored lifecycle state. StatusExpired is never
// written; it is derived from an active row whose expiry has passed.
type SubscriptionStatus string

const (
	StatusPendingPayment SubscriptionStatus = "pending_payment"
	StatusActive         SubscriptionStatus = "active"
	StatusCancelled      SubscriptionStatus = "cancelled"
	StatusExpired        SubscriptionStatus = "expired"
)

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodPromptPay  PaymentMethod = "promptpay"
	PaymentMethodAdminGrant PaymentMethod = "admin_grant"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Subscription is one purchased VIP period for an employee or establishment.
// Both subscription tables map onto it; EntityID is the employee_id or
// establishment_id column depending on SubscriptionType.
type Subscription struct {
	ID                 snowflake.ID             `gorm:"column:id" json:"id"`
	SubscriptionType   pricingdomain.EntityType `gorm:"-" json:"subscription_type"`
	EntityID           snowflake.ID             `gorm:"column:entity_id" json:"entity_id"`
	Status             SubscriptionStatus       `gorm:"column:status" json:"status"`
	Tier               string                   `gorm:"column:tier" json:"tier"`
	DurationDays       int                      `gorm:"column:duration_days" json:"duration"`
	PricePaid          int64                    `gorm:"column:price_paid" json:"price_paid"`
	StartsAt           time.Time                `gorm:"column:starts_at" json:"starts_at"`
	ExpiresAt          time.Time                `gorm:"column:expires_at" json:"expires_at"`
	PaymentMethod      PaymentMethod            `gorm:"column:payment_method" json:"payment_method"`
	PaymentStatus      PaymentStatus            `gorm:"column:payment_status" json:"payment_status"`
	TransactionID      *snowflake.ID            `gorm:"column:transaction_id" json:"transaction_id"`
	AdminVerifiedBy    *snowflake.ID            `gorm:"column:admin_verified_by" json:"admin_verified_by,omitempty"`
	AdminVerifiedAt    *time.Time               `gorm:"column:admin_verified_at" json:"admin_verified_at,omitempty"`
	AdminNotes         *string                  `gorm:"column:admin_notes" json:"admin_notes,omitempty"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string                  `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time                `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time                `gorm:"column:updated_at" json:"updated_at"`

	IsExpired bool `gorm:"-" json:"is_expired"`
}

// EffectiveStatus applies read-time expiry.
func (s Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == StatusActive && s.ExpiresAt.Before(now) {
		return StatusExpired
	}
	return s.Status
}

// Annotate fills the derived fields for presentation.
func (s *Subscription) Annotate(now time.Time) {
	s.IsExpired = s.EffectiveStatus(now) == StatusExpired
}

// Transaction is one payment attempt for a subscription.
type Transaction struct {
	ID                 snowflake.ID             `gorm:"column:id" json:"id"`
	SubscriptionType   pricingdomain.EntityType `gorm:"column:subscription_type" json:"subscription_type"`
	SubscriptionID     snowflake.ID             `gorm:"column:subscription_id" json:"subscription_id"`
	UserID             snowflake.ID             `gorm:"column:user_id" json:"user_id"`
	Amount             int64                    `gorm:"column:amount" json:"amount"`
	Currency           string                   `gorm:"column:currency" json:"currency"`
	PaymentMethod      PaymentMethod            `gorm:"column:payment_method" json:"payment_method"`
	Status             PaymentStatus            `gorm:"column:status" json:"payment_status"`
	PromptPayQRCode    *string                  `gorm:"column:promptpay_qr_code" json:"promptpay_qr_code,omitempty"`
	PromptPayPayload   *string                  `gorm:"column:promptpay_payload" json:"promptpay_payload,omitempty"`
	PromptPayReference *string                  `gorm:"column:promptpay_reference" json:"promptpay_reference,omitempty"`
	AdminVerifiedBy    *snowflake.ID            `gorm:"column:admin_verified_by" json:"admin_verified_by,omitempty"`
	AdminVerifiedAt    *time.Time               `gorm:"column:admin_verified_at" json:"admin_verified_at,omitempty"`
	AdminNotes         *string                  `gorm:"column:admin_notes" json:"admin_notes,omitempty"`
	CreatedAt          time.Time                `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time                `gorm:"column:updated_at" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "vip_payment_transactions" }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	switch method {
	case PaymentMethodCash, PaymentMethodPromptPay, PaymentMethodAdminGrant:
		return method, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return status, nil
	default:
		return "", ErrInvalidPaymentStatus
	}
}

// PurchaseMessage is the user-facing confirmation for a payment method.
func PurchaseMessage(method PaymentMethod) string {
	switch method {
	case PaymentMethodAdminGrant:
		return "VIP subscription activated successfully"
	case PaymentMethodCash:
		return "VIP subscription created. Please contact an admin to verify your cash payment."
	case PaymentMethodPromptPay:
		return "VIP subscription created. Scan the QR code to complete payment."
	default:
		return "VIP subscription created"
	}
}
