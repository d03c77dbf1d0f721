// Package testutil builds in-memory SQLite databases mirroring the VIP schema.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var vipSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		pseudonym TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME
	)`,
	`CREATE TABLE employees (
		id INTEGER PRIMARY KEY,
		user_id INTEGER,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE establishments (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE establishment_owners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		establishment_id INTEGER NOT NULL,
		owner_role TEXT NOT NULL,
		permissions TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE employment_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		establishment_id INTEGER NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT 0
	)`,
	vipSubscriptionTable("employee_vip_subscriptions", "employee_id"),
	vipSubscriptionTable("establishment_vip_subscriptions", "establishment_id"),
	`CREATE TABLE vip_payment_transactions (
		id INTEGER PRIMARY KEY,
		subscription_type TEXT NOT NULL,
		subscription_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL DEFAULT 'THB',
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		promptpay_qr_code TEXT,
		promptpay_payload TEXT,
		promptpay_reference TEXT,
		admin_verified_by INTEGER,
		admin_verified_at DATETIME,
		admin_notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE notifications (
		id INTEGER PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE vip_payment_webhook_events (
		event_id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		promptpay_reference TEXT NOT NULL,
		amount_satang INTEGER NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		received_at DATETIME NOT NULL
	)`,
}

func vipSubscriptionTable(table, entityColumn string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		id INTEGER PRIMARY KEY,
		%s INTEGER NOT NULL,
		status TEXT NOT NULL,
		tier TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		price_paid INTEGER NOT NULL,
		starts_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		transaction_id INTEGER,
		admin_verified_by INTEGER,
		admin_verified_at DATETIME,
		admin_notes TEXT,
		cancelled_at DATETIME,
		cancellation_reason TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`, table, entityColumn)
}

// OpenVIPDB returns a private in-memory database with the VIP tables created.
func OpenVIPDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range vipSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func Exec(t *testing.T, db *gorm.DB, query string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(query, args...).Error)
}
