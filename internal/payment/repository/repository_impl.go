package repository

import (
	"context"

	"github.com/pattamap/pattamap-vip/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vip_payment_webhook_events (
			event_id, provider, promptpay_reference, amount_satang, status, payload, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EventID,
		event.Provider,
		event.PromptPayReference,
		event.AmountSatang,
		event.Status,
		event.Payload,
		event.ReceivedAt,
	).Error
}

func (r *repo) DeleteEvent(ctx context.Context, db *gorm.DB, eventID string) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM vip_payment_webhook_events WHERE event_id = ?`,
		eventID,
	).Error
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.WebhookEvent, error) {
	var items []domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT event_id, provider, promptpay_reference, amount_satang, status, payload, received_at
		 FROM vip_payment_webhook_events
		 WHERE event_id = ?
		 LIMIT 1`,
		eventID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}
