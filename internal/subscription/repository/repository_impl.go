package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/pattamap/pattamap-vip/pkg/db/pagination"
	"gorm.io/gorm"
)

const subscriptionColumns = `id, %s AS entity_id, status, tier, duration_days, price_paid, starts_at, expires_at,
	payment_method, payment_status, transaction_id, admin_verified_by, admin_verified_at, admin_notes,
	cancelled_at, cancellation_reason, created_at, updated_at`

const transactionColumns = `id, subscription_type, subscription_id, user_id, amount, currency, payment_method, status,
	promptpay_qr_code, promptpay_payload, promptpay_reference, admin_verified_by, admin_verified_at, admin_notes,
	created_at, updated_at`

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

// subscriptionTable resolves the table and entity column for a subscription type.
func subscriptionTable(t pricingdomain.EntityType) (string, string, error) {
	switch t {
	case pricingdomain.EntityTypeEmployee:
		return "employee_vip_subscriptions", "employee_id", nil
	case pricingdomain.EntityTypeEstablishment:
		return "establishment_vip_subscriptions", "establishment_id", nil
	default:
		return "", "", subscriptiondomain.ErrInvalidSubscriptionType
	}
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, s *subscriptiondomain.Subscription) error {
	table, column, err := subscriptionTable(s.SubscriptionType)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (
			id, %s, status, tier, duration_days, price_paid, starts_at, expires_at,
			payment_method, payment_status, transaction_id, admin_verified_by, admin_verified_at,
			admin_notes, cancelled_at, cancellation_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, column),
		s.ID,
		s.EntityID,
		s.Status,
		s.Tier,
		s.DurationDays,
		s.PricePaid,
		s.StartsAt,
		s.ExpiresAt,
		s.PaymentMethod,
		s.PaymentStatus,
		s.TransactionID,
		s.AdminVerifiedBy,
		s.AdminVerifiedAt,
		s.AdminNotes,
		s.CancelledAt,
		s.CancellationReason,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindSubscriptionByID(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	table, column, err := subscriptionTable(subscriptionType)
	if err != nil {
		return nil, err
	}

	var items []subscriptiondomain.Subscription
	err = db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT `+subscriptionColumns+` FROM %s WHERE id = ? LIMIT 1`, column, table),
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	items[0].SubscriptionType = subscriptionType
	return &items[0], nil
}

func (r *repo) FindActiveSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, entityID snowflake.ID, at time.Time) (*subscriptiondomain.Subscription, error) {
	table, column, err := subscriptionTable(subscriptionType)
	if err != nil {
		return nil, err
	}

	var items []subscriptiondomain.Subscription
	err = db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT `+subscriptionColumns+`
		 FROM %s
		 WHERE %s = ? AND status = ? AND expires_at >= ?
		 ORDER BY expires_at DESC
		 LIMIT 1`, column, table, column),
		entityID,
		subscriptiondomain.StatusActive,
		at,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	items[0].SubscriptionType = subscriptionType
	return &items[0], nil
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID, update subscriptiondomain.SubscriptionUpdate, fromStatuses ...subscriptiondomain.SubscriptionStatus) (int64, error) {
	table, _, err := subscriptionTable(subscriptionType)
	if err != nil {
		return 0, err
	}

	values := map[string]interface{}{
		"updated_at": update.UpdatedAt,
	}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.PaymentStatus != nil {
		values["payment_status"] = *update.PaymentStatus
	}
	if update.TransactionID != nil {
		values["transaction_id"] = *update.TransactionID
	}
	if update.AdminVerifiedBy != nil {
		values["admin_verified_by"] = *update.AdminVerifiedBy
	}
	if update.AdminVerifiedAt != nil {
		values["admin_verified_at"] = *update.AdminVerifiedAt
	}
	if update.AdminNotes != nil {
		values["admin_notes"] = *update.AdminNotes
	}
	if update.CancelledAt != nil {
		values["cancelled_at"] = *update.CancelledAt
	}
	if update.CancellationReason != nil {
		values["cancellation_reason"] = *update.CancellationReason
	}

	q := db.WithContext(ctx).Table(table).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		q = q.Where("status IN ?", fromStatuses)
	}
	res := q.Updates(values)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteSubscription(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, id snowflake.ID) error {
	table, _, err := subscriptionTable(subscriptionType)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id).Error
}

// ListSubscriptionsForUser returns subscriptions of entities the user is
// linked to plus any the user paid for, newest first.
func (r *repo) ListSubscriptionsForUser(ctx context.Context, db *gorm.DB, subscriptionType pricingdomain.EntityType, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	table, column, err := subscriptionTable(subscriptionType)
	if err != nil {
		return nil, err
	}

	var linked string
	switch subscriptionType {
	case pricingdomain.EntityTypeEmployee:
		linked = `SELECT id FROM employees WHERE user_id = ?`
	default:
		linked = `SELECT establishment_id FROM establishment_owners WHERE user_id = ?`
	}

	var items []subscriptiondomain.Subscription
	err = db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT `+subscriptionColumns+`
		 FROM %s
		 WHERE %s IN (%s)
		    OR id IN (SELECT subscription_id FROM vip_payment_transactions WHERE subscription_type = ? AND user_id = ?)
		 ORDER BY created_at DESC, id DESC`, column, table, column, linked),
		userID,
		subscriptionType,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SubscriptionType = subscriptionType
	}
	return items, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, t *subscriptiondomain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vip_payment_transactions (
			id, subscription_type, subscription_id, user_id, amount, currency, payment_method, status,
			promptpay_qr_code, promptpay_payload, promptpay_reference, admin_verified_by, admin_verified_at,
			admin_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.SubscriptionType,
		t.SubscriptionID,
		t.UserID,
		t.Amount,
		t.Currency,
		t.PaymentMethod,
		t.Status,
		t.PromptPayQRCode,
		t.PromptPayPayload,
		t.PromptPayReference,
		t.AdminVerifiedBy,
		t.AdminVerifiedAt,
		t.AdminNotes,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Transaction, error) {
	var items []subscriptiondomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM vip_payment_transactions WHERE id = ? LIMIT 1`,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) FindTransactionByPromptPayReference(ctx context.Context, db *gorm.DB, reference string) (*subscriptiondomain.Transaction, error) {
	var items []subscriptiondomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM vip_payment_transactions WHERE promptpay_reference = ? LIMIT 1`,
		reference,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) UpdateTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, update subscriptiondomain.TransactionUpdate, fromStatuses ...subscriptiondomain.PaymentStatus) (int64, error) {
	values := map[string]interface{}{
		"updated_at": update.UpdatedAt,
	}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.AdminVerifiedBy != nil {
		values["admin_verified_by"] = *update.AdminVerifiedBy
	}
	if update.AdminVerifiedAt != nil {
		values["admin_verified_at"] = *update.AdminVerifiedAt
	}
	if update.AdminNotes != nil {
		values["admin_notes"] = *update.AdminNotes
	}

	q := db.WithContext(ctx).Table("vip_payment_transactions").Where("id = ?", id)
	if len(fromStatuses) > 0 {
		q = q.Where("status IN ?", fromStatuses)
	}
	res := q.Updates(values)
	return res.RowsAffected, res.Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, filter subscriptiondomain.TransactionFilter) ([]subscriptiondomain.Transaction, error) {
	q := db.WithContext(ctx).Table("vip_payment_transactions").Select(transactionColumns)
	if filter.PaymentMethod != nil {
		q = q.Where("payment_method = ?", *filter.PaymentMethod)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Cursor != nil {
		cursorID, err := snowflake.ParseString(filter.Cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, cursorID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var items []subscriptiondomain.Transaction
	if err := q.Order("created_at DESC").Order("id DESC").Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
