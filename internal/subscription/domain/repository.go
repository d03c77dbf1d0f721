package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	"github.com/pattamap/pattamap-vip/pkg/db/pagination"
	"gorm.io/gorm"
)

// SubscriptionUpdate lists the columns a status change may touch. Nil
// fields are left as they are.
type SubscriptionUpdate struct {
	Status             *SubscriptionStatus
	PaymentStatus      *PaymentStatus
	TransactionID      *snowflake.ID
	AdminVerifiedBy    *snowflake.ID
	AdminVerifiedAt    *time.Time
	AdminNotes         *string
	CancelledAt        *time.Time
	CancellationReason *string
	UpdatedAt          time.Time
}

type TransactionUpdate struct {
	Status          *PaymentStatus
	AdminVerifiedBy *snowflake.ID
	AdminVerifiedAt *time.Time
	AdminNotes      *string
	UpdatedAt       time.Time
}

type TransactionFilter struct {
	PaymentMethod *PaymentMethod
	Status        *PaymentStatus
	Cursor        *pagination.Cursor
	Limit         int
}

type Repository interface {
	InsertSubscription(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindSubscriptionByID(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID) (*Subscription, error)
	FindActiveSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, entityID snowflake.ID, at time.Time) (*Subscription, error)
	// UpdateSubscription applies update when the row is in one of fromStatuses
	// (any status when empty) and reports the affected row count.
	UpdateSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID, update SubscriptionUpdate, fromStatuses ...SubscriptionStatus) (int64, error)
	DeleteSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID) error
	ListSubscriptionsForUser(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, userID snowflake.ID) ([]Subscription, error)

	InsertTransaction(ctx context.Context, db *gorm.DB, transaction *Transaction) error
	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindTransactionByPromptPayReference(ctx context.Context, db *gorm.DB, reference string) (*Transaction, error)
	UpdateTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, update TransactionUpdate, fromStatuses ...PaymentStatus) (int64, error)
	ListTransactions(ctx context.Context, db *gorm.DB, filter TransactionFilter) ([]Transaction, error)
}

// EntityLocker serializes purchases for one target entity.
type EntityLocker interface {
	LockEntity(ctx context.Context, entityType, entityID string) (string, bool, error)
	ReleaseEntity(ctx context.Context, entityType, entityID, token string) error
}
