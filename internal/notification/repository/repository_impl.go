package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	notificationdomain "github.com/pattamap/pattamap-vip/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() notificationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *notificationdomain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, event_id, user_id, kind, payload, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.EventID,
		n.UserID,
		n.Kind,
		n.Payload,
		n.IsRead,
		n.CreatedAt,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]notificationdomain.Notification, error) {
	var items []notificationdomain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_id, user_id, kind, payload, is_read, created_at
		 FROM notifications
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
