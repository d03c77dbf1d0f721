// Package domain defines the PromptPay transfer confirmations received from
// the payment provider.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProviderPromptPay = "promptpay"

	// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac-sha256>" over
	// "<t>.<body>".
	SignatureHeader = "X-PromptPay-Signature"

	EventStatusSucceeded = "succeeded"
)

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrWebhookNotConfigured = errors.New("payment_webhook_not_configured")
)

type Service interface {
	IngestPromptPay(ctx context.Context, payload []byte, headers http.Header) error
}

// WebhookEvent is one accepted provider delivery. EventID is unique, so a
// redelivered event is stored once.
type WebhookEvent struct {
	EventID            string         `gorm:"column:event_id;primaryKey" json:"event_id"`
	Provider           string         `gorm:"column:provider" json:"provider"`
	PromptPayReference string         `gorm:"column:promptpay_reference" json:"promptpay_reference"`
	AmountSatang       int64          `gorm:"column:amount_satang" json:"amount_satang"`
	Status             string         `gorm:"column:status" json:"status"`
	Payload            datatypes.JSON `gorm:"column:payload" json:"payload"`
	ReceivedAt         time.Time      `gorm:"column:received_at" json:"received_at"`
}

func (WebhookEvent) TableName() string { return "vip_payment_webhook_events" }

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) error
	DeleteEvent(ctx context.Context, db *gorm.DB, eventID string) error
	FindEvent(ctx context.Context, db *gorm.DB, eventID string) (*WebhookEvent, error)
}
