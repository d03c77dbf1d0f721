package repository

import (
	"context"
	"database/sql"

	"github.com/bwmarrin/snowflake"
	ownershipdomain "github.com/pattamap/pattamap-vip/internal/ownership/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ownershipdomain.Repository {
	return &repo{}
}

func (r *repo) FindEmployeeUserID(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) (*snowflake.ID, error) {
	var rows []struct {
		UserID sql.NullInt64 `gorm:"column:user_id"`
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT user_id FROM employees WHERE id = ? LIMIT 1`,
		employeeID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 || !rows[0].UserID.Valid {
		return nil, nil
	}
	id := snowflake.ID(rows[0].UserID.Int64)
	return &id, nil
}

func (r *repo) ListCurrentEmployerOwnerships(ctx context.Context, db *gorm.DB, userID, employeeID snowflake.ID) ([]ownershipdomain.EstablishmentOwner, error) {
	var items []ownershipdomain.EstablishmentOwner
	err := db.WithContext(ctx).Raw(
		`SELECT eo.user_id, eo.establishment_id, eo.owner_role, eo.permissions
		 FROM establishment_owners eo
		 JOIN employment_history eh ON eh.establishment_id = eo.establishment_id
		 WHERE eo.user_id = ?
		   AND eh.employee_id = ?
		   AND eh.is_current = ?
		   AND eo.owner_role IN (?, ?)`,
		userID,
		employeeID,
		true,
		ownershipdomain.OwnerRoleOwner,
		ownershipdomain.OwnerRoleManager,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindEstablishmentOwnership(ctx context.Context, db *gorm.DB, userID, establishmentID snowflake.ID) (*ownershipdomain.EstablishmentOwner, error) {
	var items []ownershipdomain.EstablishmentOwner
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, establishment_id, owner_role, permissions
		 FROM establishment_owners
		 WHERE user_id = ? AND establishment_id = ? AND owner_role IN (?, ?)
		 LIMIT 1`,
		userID,
		establishmentID,
		ownershipdomain.OwnerRoleOwner,
		ownershipdomain.OwnerRoleManager,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}
