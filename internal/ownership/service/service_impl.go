package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	ownershipdomain "github.com/pattamap/pattamap-vip/internal/ownership/domain"
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo ownershipdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo ownershipdomain.Repository
}

func NewService(p ServiceParam) ownershipdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("ownership.service"),
		repo: p.Repo,
	}
}

func (s *Service) CanPurchase(ctx context.Context, userID snowflake.ID, entityType pricingdomain.EntityType, entityID snowflake.ID) (bool, error) {
	if userID == 0 || entityID == 0 {
		return false, nil
	}

	switch entityType {
	case pricingdomain.EntityTypeEmployee:
		return s.canActForEmployee(ctx, userID, entityID)
	case pricingdomain.EntityTypeEstablishment:
		owner, err := s.repo.FindEstablishmentOwnership(ctx, s.db, userID, entityID)
		if err != nil {
			return false, fmt.Errorf("load establishment ownership: %w", err)
		}
		return owner != nil, nil
	default:
		return false, pricingdomain.ErrInvalidEntityType
	}
}

func (s *Service) canActForEmployee(ctx context.Context, userID, employeeID snowflake.ID) (bool, error) {
	linked, err := s.repo.FindEmployeeUserID(ctx, s.db, employeeID)
	if err != nil {
		return false, fmt.Errorf("load employee: %w", err)
	}
	if linked != nil && *linked == userID {
		return true, nil
	}

	owners, err := s.repo.ListCurrentEmployerOwnerships(ctx, s.db, userID, employeeID)
	if err != nil {
		return false, fmt.Errorf("load employer ownerships: %w", err)
	}
	for _, owner := range owners {
		if owner.OwnerRole.Valid() && owner.Has(ownershipdomain.PermissionCanEditEmployees) {
			return true, nil
		}
	}

	s.log.Debug("employee purchase not permitted",
		zap.String("user_id", userID.String()),
		zap.String("employee_id", employeeID.String()),
		zap.Int("employer_relations", len(owners)),
	)
	return false, nil
}
