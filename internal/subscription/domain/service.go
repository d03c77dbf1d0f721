package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
)

type Service interface {
	GetPricing(ctx context.Context, subscriptionType string) (pricingdomain.EntityType, []pricingdomain.Price, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*Subscription, error)
	ListMine(ctx context.Context, userID snowflake.ID) (*MySubscriptions, error)
}

type PurchaseRequest struct {
	UserID           snowflake.ID
	SubscriptionType string
	EntityID         string
	Duration         int
	PaymentMethod    string
}

type PurchaseResult struct {
	Message      string
	Subscription Subscription
	Transaction  Transaction
}

type CancelRequest struct {
	UserID           snowflake.ID
	SubscriptionType string
	SubscriptionID   string
}

type MySubscriptions struct {
	Employees      []Subscription `json:"employees"`
	Establishments []Subscription `json:"establishments"`
}
