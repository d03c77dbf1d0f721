package seed

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"

	defaultAdminPseudonym = "PattaMap Admin"
)

// EnsureAdminUser makes sure userID exists in users with the admin role.
func EnsureAdminUser(ctx context.Context, db *gorm.DB, userID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if userID <= 0 {
		return errors.New("seed admin user id is required")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Raw(`SELECT COUNT(1) FROM users WHERE id = ?`, userID).Scan(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			return tx.Exec(
				`INSERT INTO users (id, pseudonym, role, created_at) VALUES (?, ?, ?, ?)`,
				userID,
				defaultAdminPseudonym,
				RoleAdmin,
				time.Now().UTC(),
			).Error
		}

		return tx.Exec(`UPDATE users SET role = ? WHERE id = ? AND role <> ?`, RoleAdmin, userID, RoleAdmin).Error
	})
}
