package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
)

type Service interface {
	// CanPurchase decides whether userID may buy or cancel VIP for the entity.
	CanPurchase(ctx context.Context, userID snowflake.ID, entityType pricingdomain.EntityType, entityID snowflake.ID) (bool, error)
}
