// Package domain defines the user-facing VIP notifications.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventKind string

const (
	EventPurchaseConfirmed     EventKind = "vip_purchase_confirmed"
	EventPaymentVerified       EventKind = "vip_payment_verified"
	EventPaymentRejected       EventKind = "vip_payment_rejected"
	EventSubscriptionCancelled EventKind = "vip_subscription_cancelled"
)

// Payload carries the subscription facts a notification refers to.
type Payload struct {
	SubscriptionType string     `json:"subscription_type"`
	SubscriptionID   string     `json:"subscription_id"`
	Tier             string     `json:"tier"`
	Duration         int        `json:"duration,omitempty"`
	PaymentMethod    string     `json:"payment_method,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// Notification is a persisted, user-visible message.
type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	EventID   string            `gorm:"column:event_id"`
	UserID    snowflake.ID      `gorm:"column:user_id"`
	Kind      EventKind         `gorm:"column:kind"`
	Payload   datatypes.JSONMap `gorm:"column:payload"`
	IsRead    bool              `gorm:"column:is_read"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

func (k EventKind) Valid() bool {
	switch k {
	case EventPurchaseConfirmed, EventPaymentVerified, EventPaymentRejected, EventSubscriptionCancelled:
		return true
	default:
		return false
	}
}

// Render produces the title and body shown to the user.
func Render(kind EventKind, p Payload) (string, string, error) {
	switch kind {
	case EventPurchaseConfirmed:
		return "VIP purchase received",
			fmt.Sprintf("Your %d day %s VIP subscription was created (payment: %s).", p.Duration, p.Tier, p.PaymentMethod), nil
	case EventPaymentVerified:
		return "VIP payment verified",
			fmt.Sprintf("Your %s VIP is active until %s.", p.Tier, formatExpiry(p.ExpiresAt)), nil
	case EventPaymentRejected:
		return "VIP payment rejected",
			fmt.Sprintf("Your %s VIP payment was rejected: %s", p.Tier, p.Reason), nil
	case EventSubscriptionCancelled:
		return "VIP subscription cancelled",
			fmt.Sprintf("Your %s VIP subscription has been cancelled.", p.Tier), nil
	default:
		return "", "", ErrUnknownEventKind
	}
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}
